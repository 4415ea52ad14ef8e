package batched

import (
	"context"
	"fmt"
	"sync"

	"github.com/samcharles93/batchlu/internal/backend"
	"github.com/samcharles93/batchlu/internal/logger"
)

// Config selects and tunes the process-wide backend.
type Config struct {
	// Backend is auto, cpu or cuda.
	Backend           string
	SerialStreams     bool
	DeviceMemoryLimit int64
	Workers           int
	Logger            logger.Logger
}

var process struct {
	mu     sync.Mutex
	solver *Solver
}

// Init opens the backend named by cfg and installs a process-wide Solver.
// Calling Init while initialised is a no-op; Init after Shutdown opens a
// fresh backend.
func Init(cfg Config) error {
	process.mu.Lock()
	defer process.mu.Unlock()
	if process.solver != nil {
		return nil
	}

	b, err := backend.New(cfg.Backend, backend.Options{
		DeviceMemoryLimit: cfg.DeviceMemoryLimit,
		Workers:           cfg.Workers,
	})
	if err != nil {
		return fmt.Errorf("init %s backend: %w", cfg.Backend, err)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	opts := []Option{WithLogger(log.With("backend", b.Name()))}
	if cfg.SerialStreams {
		opts = append(opts, WithSerialStreams())
	}
	process.solver = NewSolver(b, opts...)
	log.Debug("batched runtime initialised", "backend", b.Name())
	return nil
}

// Shutdown closes the process-wide backend. It is safe to call repeatedly.
func Shutdown() error {
	process.mu.Lock()
	defer process.mu.Unlock()
	if process.solver == nil {
		return nil
	}
	err := process.solver.Backend().Close()
	process.solver = nil
	return err
}

// Default returns the process-wide Solver installed by Init.
func Default() (*Solver, error) {
	process.mu.Lock()
	defer process.mu.Unlock()
	if process.solver == nil {
		return nil, ErrNotInitialized
	}
	return process.solver, nil
}

// SolveBatched solves count systems of order n with one right-hand side
// each, initialising the process-wide runtime with defaults if needed. a
// holds the matrices back to back and b the right-hand sides back to back.
// It returns the solutions and the status code; the solutions are nil
// whenever the code is non-zero.
func SolveBatched(ctx context.Context, n int, a, b []float32, count int) ([][]float32, int) {
	if err := Init(Config{}); err != nil {
		return nil, Code(err)
	}
	s, err := Default()
	if err != nil {
		return nil, Code(err)
	}

	batch := Batch{N: n, NRHS: 1, Count: count, A: a}
	if n >= 0 && count >= 0 && int64(len(b)) == int64(n)*int64(count) {
		batch.B = make([][]float32, count)
		for i := range batch.B {
			batch.B[i] = b[i*n : (i+1)*n : (i+1)*n]
		}
	}
	sol, err := s.Solve(ctx, batch)
	if err != nil {
		return nil, Code(err)
	}
	return sol.X, 0
}
