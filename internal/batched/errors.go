package batched

import (
	"errors"
	"fmt"

	"github.com/samcharles93/batchlu/internal/gpu"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrSingular        = errors.New("matrix is singular")
	ErrNotInitialized  = errors.New("batched runtime not initialized")
)

// Status codes for device failures that have no argument position.
const (
	CodeHostAlloc   = -112
	CodeDeviceAlloc = -113
	CodeDevice      = -116
)

// StatusError is a non-zero aggregate status. Index is the first matrix
// whose per-matrix status was non-zero, or -1 when the code came from
// argument validation. Info mirrors every per-matrix status when the device
// produced them.
type StatusError struct {
	Code  int
	Index int
	Info  []int32
}

func (e *StatusError) Error() string {
	if e.Code < 0 {
		return fmt.Sprintf("batched solve: argument %d is illegal (status %d)", -e.Code, e.Code)
	}
	if e.Index >= 0 {
		return fmt.Sprintf("batched solve: matrix %d is singular: U(%d,%d) is exactly zero", e.Index, e.Code, e.Code)
	}
	return fmt.Sprintf("batched solve: singular (status %d)", e.Code)
}

func (e *StatusError) Unwrap() error {
	if e.Code < 0 {
		return ErrInvalidArgument
	}
	return ErrSingular
}

// DeviceError is a failure of the device itself: allocation, transfer,
// stream or kernel launch.
type DeviceError struct {
	Code int
	Op   string
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("batched solve: %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func deviceError(op string, err error) error {
	if err == nil {
		return nil
	}
	code := CodeDevice
	switch {
	case errors.Is(err, gpu.ErrHostAlloc):
		code = CodeHostAlloc
	case errors.Is(err, gpu.ErrOutOfMemory):
		code = CodeDeviceAlloc
	}
	return &DeviceError{Code: code, Op: op, Err: err}
}

func argumentError(code int) error {
	return &StatusError{Code: code, Index: -1}
}

// Code maps an error to the integer status contract: 0 for nil, the status
// of a StatusError or DeviceError, and CodeDevice for anything else.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeDevice
}
