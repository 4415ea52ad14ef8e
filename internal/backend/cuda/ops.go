//go:build cuda

package cuda

import (
	"context"
	"unsafe"

	"github.com/samcharles93/batchlu/internal/backend/cuda/native"
	"github.com/samcharles93/batchlu/internal/gpu"
)

// Factorize runs cublasSgetrfBatched. cuBLAS writes pivots contiguously, so
// args.Pivots is used and args.PivArray is ignored.
func (b *Backend) Factorize(ctx context.Context, args gpu.FactorArgs, s gpu.Stream) (code int, err error) {
	if c := args.Check(); c != 0 || args.Empty() {
		return c, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ns, err := b.resolve(s)
	if err != nil {
		return 0, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			code, err = 0, cudaExecutionError(rec)
		}
	}()

	if err := b.withStream(ns, func(h native.BlasHandle) error {
		return native.SgetrfBatched(h, args.N, uint64(args.AArray), args.LDDA, uint64(args.Pivots), uint64(args.Info), args.Count)
	}); err != nil {
		return 0, deviceError("getrf batched", err)
	}
	return b.firstStatus(args.Info, args.Count, ns)
}

// SolveFactored runs cublasSgetrsBatched on factors left by Factorize.
func (b *Backend) SolveFactored(ctx context.Context, args gpu.SolveArgs, s gpu.Stream) (code int, err error) {
	if c := args.Check(); c != 0 || args.Empty() {
		return c, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ns, err := b.resolve(s)
	if err != nil {
		return 0, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			code, err = 0, cudaExecutionError(rec)
		}
	}()

	var info int
	if err := b.withStream(ns, func(h native.BlasHandle) error {
		var e error
		info, e = native.SgetrsBatched(h, args.N, args.NRHS, uint64(args.AArray), args.LDDA, uint64(args.Pivots), uint64(args.BArray), args.LDDB, args.Count)
		return e
	}); err != nil {
		return 0, deviceError("getrs batched", err)
	}
	if info != 0 {
		return info, nil
	}
	return 0, deviceError("stream synchronize", ns.Synchronize())
}

func (b *Backend) FactorizeSolve(ctx context.Context, args gpu.SolveArgs, s gpu.Stream) (int, error) {
	if c := args.Check(); c != 0 || args.Empty() {
		return c, nil
	}
	code, err := b.Factorize(ctx, args.Factor(), s)
	if err != nil || code != 0 {
		return code, err
	}
	return b.SolveFactored(ctx, args, s)
}

// withStream binds the shared cuBLAS handle to ns for the duration of fn.
func (b *Backend) withStream(ns native.Stream, fn func(native.BlasHandle) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.blas.SetStream(ns); err != nil {
		return err
	}
	return fn(b.blas)
}

// firstStatus downloads the per-matrix codes and returns the first non-zero.
func (b *Backend) firstStatus(info gpu.DevicePtr, count int, ns native.Stream) (int, error) {
	host, err := native.AllocHostPinned(int64(count) * 4)
	if err != nil {
		return 0, deviceError("status staging", err)
	}
	defer host.Free()

	if err := native.GetVectorAsync(count, 4, uint64(info), host.Ptr(), ns); err != nil {
		return 0, transferError("get status", err)
	}
	if err := ns.Synchronize(); err != nil {
		return 0, deviceError("stream synchronize", err)
	}
	for _, code := range unsafe.Slice((*int32)(host.Ptr()), count) {
		if code != 0 {
			return int(code), nil
		}
	}
	return 0, nil
}
