//go:build cuda

package cuda

import (
	"errors"
	"strings"
	"testing"

	"github.com/samcharles93/batchlu/internal/backend/cuda/native"
	"github.com/samcharles93/batchlu/internal/gpu"
)

func TestCudaExecutionErrorWrapsError(t *testing.T) {
	err := cudaExecutionError(errors.New("boom"))
	if !strings.Contains(err.Error(), "cuda execution failed") {
		t.Fatalf("unexpected message: %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("missing wrapped message: %v", err)
	}
	if !errors.Is(err, gpu.ErrKernelLaunch) {
		t.Fatalf("expected ErrKernelLaunch, got %v", err)
	}
}

func TestCudaExecutionErrorValue(t *testing.T) {
	err := cudaExecutionError("panic text")
	if !strings.Contains(err.Error(), "panic text") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestDeviceErrorClassification(t *testing.T) {
	tests := []struct {
		err  *native.Error
		want error
	}{
		{&native.Error{Lib: "cuda runtime", Code: native.CudaErrorMemoryAllocation}, gpu.ErrOutOfMemory},
		{&native.Error{Lib: "cublas", Code: native.CublasStatusAllocFailed}, gpu.ErrOutOfMemory},
		{&native.Error{Lib: "cublas", Code: native.CublasStatusInvalidValue}, gpu.ErrInvalidValue},
		{&native.Error{Lib: "cublas", Code: native.CublasStatusMappingError}, gpu.ErrTransfer},
		{&native.Error{Lib: "cublas", Code: native.CublasStatusExecutionFailed}, gpu.ErrKernelLaunch},
	}
	for _, tt := range tests {
		err := deviceError("op", tt.err)
		if !errors.Is(err, tt.want) {
			t.Fatalf("%v: expected %v", err, tt.want)
		}
		var nerr *native.Error
		if !errors.As(err, &nerr) || nerr.Code != tt.err.Code {
			t.Fatalf("%v: native status lost", err)
		}
	}
	if deviceError("op", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestTransferErrorAlwaysTransfer(t *testing.T) {
	err := transferError("set matrix", &native.Error{Lib: "cublas", Code: native.CublasStatusInvalidValue})
	if !errors.Is(err, gpu.ErrTransfer) {
		t.Fatalf("expected ErrTransfer, got %v", err)
	}
}
