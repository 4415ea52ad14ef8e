//go:build cuda

package backend

import (
	"github.com/samcharles93/batchlu/internal/backend/cuda"
	"github.com/samcharles93/batchlu/internal/gpu"
)

const cudaEnabled = true

func newCUDA() (gpu.Backend, error) {
	b, err := cuda.New()
	if err != nil {
		return nil, err
	}
	return b, nil
}
