package gpu

import "errors"

var (
	ErrOutOfMemory     = errors.New("device out of memory")
	ErrHostAlloc       = errors.New("host allocation failed")
	ErrInvalidPointer  = errors.New("invalid device pointer")
	ErrInvalidValue    = errors.New("invalid value")
	ErrTransfer        = errors.New("transfer failed")
	ErrStreamDestroyed = errors.New("stream destroyed")
	ErrDeviceClosed    = errors.New("device closed")
	ErrKernelLaunch    = errors.New("kernel launch failed")
	ErrForeignStream   = errors.New("stream belongs to another device")
)
