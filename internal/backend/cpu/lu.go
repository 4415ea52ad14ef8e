package cpu

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/lapack/gonum"

	"github.com/samcharles93/batchlu/internal/gpu"
)

var lapack gonum.Implementation

// Factorize runs getrf on every matrix of the batch. Factors overwrite A in
// place, pivots are stored 1-based and Info receives one code per matrix.
func (b *Backend) Factorize(ctx context.Context, args gpu.FactorArgs, s gpu.Stream) (int, error) {
	if code := args.Check(); code != 0 || args.Empty() {
		return code, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	st, err := b.stream(s)
	if err != nil {
		return 0, err
	}
	if err := st.enqueue(func() error { return b.getrf(args) }); err != nil {
		return 0, err
	}
	return b.collect(st, args.Info, args.Count)
}

// SolveFactored runs getrs on every matrix using factors and pivots left by
// Factorize. B is overwritten with X.
func (b *Backend) SolveFactored(ctx context.Context, args gpu.SolveArgs, s gpu.Stream) (int, error) {
	if code := args.Check(); code != 0 || args.Empty() {
		return code, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	st, err := b.stream(s)
	if err != nil {
		return 0, err
	}
	if err := st.enqueue(func() error { return b.getrs(args) }); err != nil {
		return 0, err
	}
	return 0, st.Synchronize()
}

// FactorizeSolve factors and solves in one call; matrices that fail to
// factor are left unsolved.
func (b *Backend) FactorizeSolve(ctx context.Context, args gpu.SolveArgs, s gpu.Stream) (int, error) {
	if code := args.Check(); code != 0 || args.Empty() {
		return code, nil
	}
	code, err := b.Factorize(ctx, args.Factor(), s)
	if err != nil || code != 0 {
		return code, err
	}
	return b.SolveFactored(ctx, args, s)
}

// collect waits for the stream and returns the first non-zero status.
func (b *Backend) collect(st *stream, info gpu.DevicePtr, count int) (int, error) {
	if err := st.Synchronize(); err != nil {
		return 0, err
	}
	raw, err := b.mem.device(uint64(info), int64(count)*4)
	if err != nil {
		return 0, err
	}
	for _, code := range int32s(raw) {
		if code != 0 {
			return int(code), nil
		}
	}
	return 0, nil
}

func (b *Backend) pointers(table gpu.DevicePtr, count int) ([]uint64, error) {
	raw, err := b.mem.device(uint64(table), int64(count)*8)
	if err != nil {
		return nil, fmt.Errorf("pointer array: %w", err)
	}
	return uint64s(raw), nil
}

func (b *Backend) getrf(args gpu.FactorArgs) error {
	as, err := b.pointers(args.AArray, args.Count)
	if err != nil {
		return err
	}
	ps, err := b.pointers(args.PivArray, args.Count)
	if err != nil {
		return err
	}
	rawInfo, err := b.mem.device(uint64(args.Info), int64(args.Count)*4)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	info := int32s(rawInfo)

	n, ld := args.N, args.LDDA
	span := gpu.MatrixSpan(n, n, ld, 4)
	return b.parallel(args.Count, func(lo, hi int) error {
		work := make([]float64, n*n)
		ipiv := make([]int, n)
		for i := lo; i < hi; i++ {
			rawA, err := b.mem.device(as[i], span)
			if err != nil {
				return fmt.Errorf("matrix %d: %w", i, err)
			}
			rawP, err := b.mem.device(ps[i], int64(n)*4)
			if err != nil {
				return fmt.Errorf("pivots %d: %w", i, err)
			}
			a, piv := float32s(rawA), int32s(rawP)

			load(work, a, n, n, ld)
			lapack.Dgetrf(n, n, work, n, ipiv)
			store(a, work, n, n, ld)

			info[i] = 0
			for k := range n {
				piv[k] = int32(ipiv[k] + 1)
				if work[k*n+k] == 0 && info[i] == 0 {
					info[i] = int32(k + 1)
				}
			}
		}
		return nil
	})
}

func (b *Backend) getrs(args gpu.SolveArgs) error {
	as, err := b.pointers(args.AArray, args.Count)
	if err != nil {
		return err
	}
	ps, err := b.pointers(args.PivArray, args.Count)
	if err != nil {
		return err
	}
	bs, err := b.pointers(args.BArray, args.Count)
	if err != nil {
		return err
	}

	n, nrhs := args.N, args.NRHS
	spanA := gpu.MatrixSpan(n, n, args.LDDA, 4)
	spanB := gpu.MatrixSpan(n, nrhs, args.LDDB, 4)
	return b.parallel(args.Count, func(lo, hi int) error {
		lu := make([]float64, n*n)
		x := make([]float64, n*nrhs)
		ipiv := make([]int, n)
		for i := lo; i < hi; i++ {
			rawA, err := b.mem.device(as[i], spanA)
			if err != nil {
				return fmt.Errorf("matrix %d: %w", i, err)
			}
			rawP, err := b.mem.device(ps[i], int64(n)*4)
			if err != nil {
				return fmt.Errorf("pivots %d: %w", i, err)
			}
			rawB, err := b.mem.device(bs[i], spanB)
			if err != nil {
				return fmt.Errorf("rhs %d: %w", i, err)
			}
			piv := int32s(rawP)
			for k := range n {
				if piv[k] < 1 || int(piv[k]) > n {
					return fmt.Errorf("%w: matrix %d pivot %d = %d", gpu.ErrInvalidValue, i, k, piv[k])
				}
				ipiv[k] = int(piv[k] - 1)
			}

			load(lu, float32s(rawA), n, n, args.LDDA)
			load(x, float32s(rawB), n, nrhs, args.LDDB)
			lapack.Dgetrs(blas.NoTrans, n, nrhs, lu, n, ipiv, x, nrhs)
			store(float32s(rawB), x, n, nrhs, args.LDDB)
		}
		return nil
	})
}

// parallel splits [0, count) into contiguous chunks, one per worker, and
// returns the first chunk error.
func (b *Backend) parallel(count int, fn func(lo, hi int) error) error {
	workers := min(b.workers, count)
	if workers <= 1 {
		return fn(0, count)
	}
	chunk := (count + workers - 1) / workers

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for lo := 0; lo < count; lo += chunk {
		hi := min(lo+chunk, count)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := execute(func() error { return fn(lo, hi) }); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// load copies a column-major float32 rows×cols matrix with leading dimension
// ld into a dense row-major float64 buffer.
func load(dst []float64, src []float32, rows, cols, ld int) {
	for j := range cols {
		col := src[j*ld : j*ld+rows]
		for i, v := range col {
			dst[i*cols+j] = float64(v)
		}
	}
}

func store(dst []float32, src []float64, rows, cols, ld int) {
	for j := range cols {
		col := dst[j*ld : j*ld+rows]
		for i := range col {
			col[i] = float32(src[i*cols+j])
		}
	}
}
