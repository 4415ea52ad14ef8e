package batched

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/batchlu/internal/verify"
)

// randomBatch returns count well-conditioned systems of order n.
func randomBatch(seed uint64, n, nrhs, count int) Batch {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	a := make([]float32, n*n*count)
	for k := range count {
		m := a[k*n*n : (k+1)*n*n]
		for i := range m {
			m[i] = rng.Float32()*2 - 1
		}
		for i := range n {
			m[i*n+i] += float32(n)
		}
	}
	b := make([][]float32, count)
	for k := range b {
		b[k] = make([]float32, n*nrhs)
		for i := range b[k] {
			b[k][i] = rng.Float32()*10 - 5
		}
	}
	return Batch{N: n, NRHS: nrhs, Count: count, A: a, B: b}
}

func requireSolved(t *testing.T, batch Batch, sol *Solution) {
	t.Helper()
	require.NotNil(t, sol)
	require.Len(t, sol.X, batch.Count)
	assert.Equal(t, make([]int32, batch.Count), sol.Info)
	_, worst, err := verify.Batch(batch.N, batch.NRHS, batch.A, sol.X, batch.B)
	require.NoError(t, err)
	assert.LessOrEqual(t, worst, 1e-5)
}

func TestSolveResidual(t *testing.T) {
	tests := []struct {
		name           string
		n, nrhs, count int
	}{
		{"single 1x1", 1, 1, 1},
		{"small batch", 4, 1, 16},
		{"multiple rhs", 7, 3, 5},
		{"order above alignment", 33, 2, 3},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newCPU(t)
			batch := randomBatch(uint64(i+1), tt.n, tt.nrhs, tt.count)
			sol, err := NewSolver(dev).Solve(context.Background(), batch)
			require.NoError(t, err)
			requireSolved(t, batch, sol)
			requireNoLiveMemory(t, dev)
		})
	}
}

func TestSolveDoesNotModifyInputs(t *testing.T) {
	batch := randomBatch(9, 3, 1, 2)
	a := append([]float32(nil), batch.A...)
	b0 := append([]float32(nil), batch.B[0]...)

	_, err := NewSolver(newCPU(t)).Solve(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, a, batch.A)
	assert.Equal(t, b0, batch.B[0])
}

func TestSolveQuickReturn(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
	}{
		{"zero order", Batch{N: 0, NRHS: 1, Count: 2, B: [][]float32{{}, {}}}},
		{"zero rhs", Batch{N: 2, NRHS: 0, Count: 1, A: make([]float32, 4), B: [][]float32{{}}}},
		{"empty batch", Batch{N: 3, NRHS: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newCPU(t)
			sol, err := NewSolver(dev).Solve(context.Background(), tt.batch)
			require.NoError(t, err)
			assert.Len(t, sol.X, tt.batch.Count)
			assert.Len(t, sol.Info, tt.batch.Count)
			assert.Zero(t, dev.PeakMemory())
		})
	}
}

func TestSolveArgumentCodes(t *testing.T) {
	good := randomBatch(3, 2, 1, 2)
	tests := []struct {
		name   string
		mutate func(*Batch)
		want   int
	}{
		{"negative order", func(b *Batch) { b.N = -1 }, -1},
		{"negative rhs count", func(b *Batch) { b.NRHS = -1 }, -2},
		{"negative batch count", func(b *Batch) { b.Count = -2 }, -9},
		{"short matrices", func(b *Batch) { b.A = b.A[:7] }, -3},
		{"missing rhs block", func(b *Batch) { b.B = b.B[:1] }, -5},
		{"short rhs block", func(b *Batch) { b.B = [][]float32{{1, 2}, {1}} }, -5},
		{"order checked first", func(b *Batch) { b.N, b.A = -1, nil }, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newCPU(t)
			rec := &recorder{}
			batch := good
			tt.mutate(&batch)

			sol, err := NewSolver(dev, WithReporter(rec)).Solve(context.Background(), batch)
			assert.Nil(t, sol)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, tt.want, Code(err))

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, -1, se.Index)
			assert.Equal(t, []recordedReport{{solveLabel, -tt.want}}, rec.reports)
			assert.Zero(t, dev.PeakMemory(), "no device work for an illegal argument")
		})
	}
}

func TestSolveSingularMatrix(t *testing.T) {
	dev := newCPU(t)
	batch := randomBatch(4, 2, 1, 3)
	copy(batch.A[4:8], []float32{1, 2, 2, 4})

	sol, err := NewSolver(dev).Solve(context.Background(), batch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSingular)
	assert.Equal(t, 2, Code(err))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Index)
	require.NotNil(t, sol)
	assert.Nil(t, sol.X)
	assert.Equal(t, []int32{0, 2, 0}, sol.Info)
	requireNoLiveMemory(t, dev)
}

func TestSolveIdentityAndSingular(t *testing.T) {
	batch := Batch{
		N: 2, NRHS: 1, Count: 2,
		A: []float32{1, 0, 0, 1, 1, 0, 0, 0},
		B: [][]float32{{3, 5}, {1, 1}},
	}
	sol, err := NewSolver(newCPU(t)).Solve(context.Background(), batch)
	assert.Equal(t, 2, Code(err))
	assert.Nil(t, sol.X)
	assert.Equal(t, []int32{0, 2}, sol.Info)

	batch.Count, batch.A, batch.B = 1, batch.A[:4], batch.B[:1]
	sol, err = NewSolver(newCPU(t)).Solve(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 5}}, sol.X)
}

func TestSolveSerialMatchesConcurrent(t *testing.T) {
	batch := randomBatch(5, 6, 2, 8)

	concurrent, err := NewSolver(newCPU(t)).Solve(context.Background(), batch)
	require.NoError(t, err)
	serial, err := NewSolver(newCPU(t), WithSerialStreams()).Solve(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, concurrent.X, serial.X)
}

func TestSolveRepeatedDoesNotGrow(t *testing.T) {
	dev := newCPU(t)
	s := NewSolver(dev)
	batch := randomBatch(6, 5, 1, 4)

	_, err := s.Solve(context.Background(), batch)
	require.NoError(t, err)
	peak := dev.PeakMemory()
	for range 10 {
		_, err := s.Solve(context.Background(), batch)
		require.NoError(t, err)
	}
	assert.Equal(t, peak, dev.PeakMemory())
	requireNoLiveMemory(t, dev)
}

func TestSolveConcurrentCalls(t *testing.T) {
	dev := newCPU(t)
	s := NewSolver(dev)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Go(func() {
			batch := randomBatch(uint64(100+i), 4, 1, 8)
			sol, err := s.Solve(context.Background(), batch)
			if err == nil {
				_, worst, verr := verify.Batch(batch.N, batch.NRHS, batch.A, sol.X, batch.B)
				if verr == nil && worst > 1e-5 {
					verr = errors.New("residual too large")
				}
				err = verr
			}
			errs[i] = err
		})
	}
	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "call %d", i)
	}
	requireNoLiveMemory(t, dev)
}

func TestSolveUploadFailure(t *testing.T) {
	dev := &faultyBackend{Backend: newCPU(t), failUpload: true}
	sol, err := NewSolver(dev).Solve(context.Background(), randomBatch(7, 3, 1, 2))
	assert.Nil(t, sol)
	assert.Equal(t, CodeDevice, Code(err))

	var de *DeviceError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "upload matrices", de.Op)
	requireNoLiveMemory(t, dev)
}

func TestSolveAllocationFailure(t *testing.T) {
	dev := &faultyBackend{Backend: newCPU(t), failAlloc: 5}
	_, err := NewSolver(dev).Solve(context.Background(), randomBatch(8, 3, 1, 2))
	assert.Equal(t, CodeDeviceAlloc, Code(err))
	requireNoLiveMemory(t, dev)
}

func TestSolveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dev := newCPU(t)
	_, err := NewSolver(dev).Solve(ctx, randomBatch(1, 2, 1, 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, dev.PeakMemory())
}
