//go:build cuda

package cuda

import (
	"errors"
	"fmt"

	"github.com/samcharles93/batchlu/internal/backend/cuda/native"
	"github.com/samcharles93/batchlu/internal/gpu"
)

// classify maps a native status to the gpu sentinel it belongs to.
func classify(err error) error {
	var nerr *native.Error
	if !errors.As(err, &nerr) {
		return gpu.ErrKernelLaunch
	}
	switch {
	case nerr.Lib == "cublas" && nerr.Code == native.CublasStatusAllocFailed,
		nerr.Lib != "cublas" && nerr.Code == native.CudaErrorMemoryAllocation:
		return gpu.ErrOutOfMemory
	case nerr.Lib == "cublas" && nerr.Code == native.CublasStatusInvalidValue:
		return gpu.ErrInvalidValue
	case nerr.Lib == "cublas" && nerr.Code == native.CublasStatusMappingError:
		return gpu.ErrTransfer
	default:
		return gpu.ErrKernelLaunch
	}
}

func deviceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("cuda %s failed: %w: %w", op, classify(err), err)
}

// transferError wraps copy failures as gpu.ErrTransfer regardless of status.
func transferError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("cuda %s failed: %w: %w", op, gpu.ErrTransfer, err)
}

func cudaExecutionError(rec any) error {
	if recErr, ok := rec.(error); ok {
		return fmt.Errorf("%w: cuda execution failed: %w", gpu.ErrKernelLaunch, recErr)
	}
	return fmt.Errorf("%w: cuda execution failed: %v", gpu.ErrKernelLaunch, rec)
}
