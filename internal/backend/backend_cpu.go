//go:build !cuda

package backend

import (
	"errors"

	"github.com/samcharles93/batchlu/internal/gpu"
)

const cudaEnabled = false

var errCUDAUnavailable = errors.New("cuda backend is not available in this build")

func newCUDA() (gpu.Backend, error) {
	return nil, errCUDAUnavailable
}
