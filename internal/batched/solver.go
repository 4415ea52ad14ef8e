// Package batched solves batches of dense single-precision systems A·X = B
// by LU decomposition with partial pivoting on an accelerator.
//
// One call moves the whole batch to the device in two arenas, builds the
// array-of-pointers tables a batched provider expects, factors and solves
// on the device, and copies the solutions back. Uploads run concurrently on
// three streams joined by barriers before compute and after the status
// download. Every buffer is released on every path.
package batched

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/batchlu/internal/gpu"
	"github.com/samcharles93/batchlu/internal/logger"
)

const solveLabel = "Solve"

// Batch is a set of Count systems of order N with NRHS right-hand sides.
// A holds the matrices column-major with leading dimension N, one after
// another. B holds one N×NRHS column-major block per matrix.
type Batch struct {
	N     int
	NRHS  int
	Count int
	A     []float32
	B     [][]float32
}

// Solution holds X, one N×NRHS block per matrix, and the per-matrix status
// codes. X is nil when any status is non-zero.
type Solution struct {
	X    [][]float32
	Info []int32
}

type Option func(*Solver)

// WithSerialStreams runs every transfer and kernel on one stream.
func WithSerialStreams() Option {
	return func(s *Solver) { s.serial = true }
}

func WithReporter(r Reporter) Option {
	return func(s *Solver) { s.reporter = r }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Solver) { s.log = l }
}

// Solver is safe for concurrent use; each call owns its streams and buffers.
type Solver struct {
	backend  gpu.Backend
	serial   bool
	reporter Reporter
	log      logger.Logger
}

func NewSolver(backend gpu.Backend, opts ...Option) *Solver {
	s := &Solver{backend: backend, log: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	if s.reporter == nil {
		s.reporter = LogReporter(s.log)
	}
	return s
}

func (s *Solver) Backend() gpu.Backend {
	return s.backend
}

// validate checks the host-side shape of a batch. Scalar arguments are
// checked before the lengths that depend on them.
func validate(b Batch) int {
	switch {
	case b.N < 0:
		return -argN
	case b.NRHS < 0:
		return -argNRHS
	case b.Count < 0:
		return -argCount
	case int64(len(b.A)) != int64(b.N)*int64(b.N)*int64(b.Count):
		return -argA
	case len(b.B) != b.Count:
		return -argB
	}
	want := b.N * b.NRHS
	for _, rhs := range b.B {
		if len(rhs) != want {
			return -argB
		}
	}
	return 0
}

// Solve runs one batched solve. A non-zero status is returned as a
// *StatusError together with a Solution carrying the status mirror.
func (s *Solver) Solve(ctx context.Context, batch Batch) (sol *Solution, err error) {
	if code := validate(batch); code != 0 {
		s.reporter.Report(solveLabel, -code)
		return nil, argumentError(code)
	}
	l := NewLayout(batch.N, batch.NRHS, batch.Count)
	if l.Empty() {
		return emptySolution(l), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := s.log.With("call_id", uuid.NewString(), "n", l.N, "nrhs", l.NRHS, "count", l.Count)
	start := time.Now()
	defer func() {
		if err != nil {
			log.Warn("batched solve failed", "status", Code(err), "err", err)
			return
		}
		log.Debug("batched solve done", "took", time.Since(start))
	}()

	streams, err := newStreamSet(s.backend, s.serial)
	if err != nil {
		return nil, deviceError("create streams", err)
	}
	res, err := acquire(s.backend, l, streams)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := res.release(); e != nil && err == nil {
			sol, err = nil, deviceError("release", e)
		}
	}()
	log.Debug("resources acquired", "device", s.backend.Name())

	if err := s.upload(res, l, batch); err != nil {
		return nil, err
	}
	if err := res.streams.barrier(); err != nil {
		return nil, deviceError("upload barrier", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug("inputs staged")

	args := gpu.SolveArgs{
		N:        l.N,
		NRHS:     l.NRHS,
		AArray:   res.dAArray,
		LDDA:     l.LDDA,
		PivArray: res.dPivArray,
		Pivots:   res.dPiv,
		BArray:   res.dBArray,
		LDDB:     l.LDDB,
		Info:     res.dInfo,
		Count:    l.Count,
	}
	code, err := solveBatched(ctx, s.backend, args, res.streams.get(roleMatrix), s.reporter)
	if err != nil {
		return nil, deviceError("solve", err)
	}
	log.Debug("device solve returned", "status", code)

	matrix, rhs := res.streams.get(roleMatrix), res.streams.get(roleRHS)
	if err := s.backend.GetVectorAsync(l.Count, int32Size, res.dInfo, res.hostInfo.Ptr(), matrix); err != nil {
		return nil, deviceError("download status", err)
	}
	if err := s.backend.GetMatrixAsync(l.N, l.NRHS*l.Count, float32Size, res.dB, l.LDDB, res.hostX.Ptr(), l.LDB, rhs); err != nil {
		return nil, deviceError("download solution", err)
	}
	if err := res.streams.sync(roleMatrix); err != nil {
		return nil, deviceError("status barrier", err)
	}

	info := append([]int32(nil), res.hostInfo.Int32()[:l.Count]...)
	for i, c := range info {
		if c != 0 {
			return &Solution{Info: info}, &StatusError{Code: int(c), Index: i, Info: info}
		}
	}
	if code != 0 {
		return &Solution{Info: info}, &StatusError{Code: code, Index: -1, Info: info}
	}

	if err := res.streams.sync(roleRHS); err != nil {
		return nil, deviceError("solution barrier", err)
	}
	return &Solution{X: unpack(res.hostX.Float32(), l), Info: info}, nil
}

// upload stages the inputs in pinned memory and issues the host-to-device
// copies and pointer tables on their streams.
func (s *Solver) upload(res *resources, l Layout, batch Batch) error {
	dev := s.backend
	matrix, rhs := res.streams.get(roleMatrix), res.streams.get(roleRHS)

	copy(res.hostA.Float32(), batch.A)
	hostX := res.hostX.Float32()
	block := l.N * l.NRHS
	for i, b := range batch.B {
		copy(hostX[i*block:(i+1)*block], b)
	}
	clear(res.hostInfo.Int32()[:l.Count])

	if err := dev.SetMatrixAsync(l.N, l.N*l.Count, float32Size, res.hostA.Ptr(), l.LDA, res.dA, l.LDDA, matrix); err != nil {
		return deviceError("upload matrices", err)
	}
	if err := dev.SetMatrixAsync(l.N, l.NRHS*l.Count, float32Size, res.hostX.Ptr(), l.LDB, res.dB, l.LDDB, rhs); err != nil {
		return deviceError("upload rhs", err)
	}
	if err := dev.SetVectorAsync(l.Count, int32Size, res.hostInfo.Ptr(), res.dInfo, matrix); err != nil {
		return deviceError("upload status", err)
	}

	tables := []struct {
		name   string
		ro     role
		dst    gpu.DevicePtr
		base   gpu.DevicePtr
		stride int64
	}{
		{"pivot pointer array", rolePivot, res.dPivArray, res.dPiv, l.PivotStride()},
		{"matrix pointer array", roleMatrix, res.dAArray, res.dA, l.AStride()},
		{"rhs pointer array", roleRHS, res.dBArray, res.dB, l.BStride()},
	}
	for _, t := range tables {
		staging := res.pointerStaging(t.ro, l.Count)
		if err := buildPointerArray(dev, staging, t.dst, t.base, t.stride, l.Count, res.streams.get(t.ro)); err != nil {
			return deviceError("build "+t.name, err)
		}
	}
	return nil
}

func unpack(host []float32, l Layout) [][]float32 {
	block := l.N * l.NRHS
	x := make([][]float32, l.Count)
	for i := range x {
		x[i] = append([]float32(nil), host[i*block:(i+1)*block]...)
	}
	return x
}

func emptySolution(l Layout) *Solution {
	x := make([][]float32, l.Count)
	for i := range x {
		x[i] = []float32{}
	}
	return &Solution{X: x, Info: make([]int32, l.Count)}
}
