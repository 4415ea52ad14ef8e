// Package backend selects and constructs the accelerator backend by name.
package backend

import (
	"fmt"
	"strings"

	"github.com/samcharles93/batchlu/internal/backend/cpu"
	"github.com/samcharles93/batchlu/internal/gpu"
)

const (
	CPU  = "cpu"
	CUDA = "cuda"
	Auto = "auto"
)

type Options struct {
	DeviceMemoryLimit int64
	Workers           int
}

func Normalize(name string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(name))
	if backend == "" {
		return Auto, nil
	}
	switch backend {
	case CPU, CUDA, Auto:
		return backend, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, cpu, or cuda)", backend)
	}
}

// New constructs the named backend. Auto prefers CUDA when it is compiled in
// and a device is present, and falls back to the cpu emulation otherwise.
func New(name string, opts Options) (gpu.Backend, error) {
	backend, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	switch backend {
	case CPU:
		return newCPU(opts), nil
	case CUDA:
		return newCUDA()
	default:
		if cudaEnabled {
			if b, err := newCUDA(); err == nil {
				return b, nil
			}
		}
		return newCPU(opts), nil
	}
}

func newCPU(opts Options) gpu.Backend {
	return cpu.New(cpu.Options{
		DeviceMemoryLimit: opts.DeviceMemoryLimit,
		Workers:           opts.Workers,
	})
}
