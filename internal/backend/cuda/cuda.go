//go:build cuda

// Package cuda implements the accelerator surface on an NVIDIA device
// through the CUDA runtime and cuBLAS batched LU routines.
package cuda

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/samcharles93/batchlu/internal/backend/cuda/native"
	"github.com/samcharles93/batchlu/internal/gpu"
)

type Backend struct {
	// mu serialises use of the shared cuBLAS handle, whose stream binding
	// is per-handle state.
	mu   sync.Mutex
	blas native.BlasHandle

	state   sync.Mutex
	closed  bool
	streams map[*stream]struct{}
	device  map[uint64]int64
	host    map[unsafe.Pointer]int64
	used    int64
}

var _ gpu.Backend = (*Backend)(nil)

func New() (*Backend, error) {
	count, err := native.DeviceCount()
	if err != nil {
		return nil, fmt.Errorf("cuda device query failed: %w", err)
	}
	if count < 1 {
		return nil, fmt.Errorf("no cuda devices detected")
	}
	blas, err := native.NewBlasHandle()
	if err != nil {
		return nil, fmt.Errorf("cublas init failed: %w", err)
	}
	return &Backend{
		blas:    blas,
		streams: make(map[*stream]struct{}),
		device:  make(map[uint64]int64),
		host:    make(map[unsafe.Pointer]int64),
	}, nil
}

func (b *Backend) Name() string {
	return "cuda"
}

type stream struct {
	ns    native.Stream
	owner *Backend
	once  sync.Once
	err   error
}

func (s *stream) Synchronize() error {
	return deviceError("stream synchronize", s.ns.Synchronize())
}

func (s *stream) Destroy() error {
	s.once.Do(func() {
		s.err = deviceError("stream destroy", s.ns.Destroy())
		s.owner.state.Lock()
		delete(s.owner.streams, s)
		s.owner.state.Unlock()
	})
	return s.err
}

func (b *Backend) NewStream() (gpu.Stream, error) {
	b.state.Lock()
	defer b.state.Unlock()
	if b.closed {
		return nil, gpu.ErrDeviceClosed
	}
	ns, err := native.NewStream()
	if err != nil {
		return nil, deviceError("stream create", err)
	}
	s := &stream{ns: ns, owner: b}
	b.streams[s] = struct{}{}
	return s, nil
}

// resolve maps a caller stream to its native handle; nil selects the legacy
// default stream.
func (b *Backend) resolve(s gpu.Stream) (native.Stream, error) {
	if s == nil {
		return native.Stream{}, nil
	}
	st, ok := s.(*stream)
	if !ok || st.owner != b {
		return native.Stream{}, fmt.Errorf("%w: %T", gpu.ErrForeignStream, s)
	}
	return st.ns, nil
}

func (b *Backend) Malloc(bytes int64) (gpu.DevicePtr, error) {
	b.state.Lock()
	defer b.state.Unlock()
	if b.closed {
		return 0, gpu.ErrDeviceClosed
	}
	if bytes <= 0 {
		return 0, fmt.Errorf("%w: device alloc size must be > 0", gpu.ErrInvalidValue)
	}
	p, err := native.AllocDevice(bytes)
	if err != nil {
		return 0, fmt.Errorf("%w: %d bytes: %w", gpu.ErrOutOfMemory, bytes, err)
	}
	b.device[p] = bytes
	b.used += bytes
	return gpu.DevicePtr(p), nil
}

func (b *Backend) Free(p gpu.DevicePtr) error {
	if p.IsNull() {
		return nil
	}
	b.state.Lock()
	defer b.state.Unlock()
	bytes, ok := b.device[uint64(p)]
	if !ok {
		return fmt.Errorf("%w: 0x%x is not the base of a live allocation", gpu.ErrInvalidPointer, uint64(p))
	}
	delete(b.device, uint64(p))
	b.used -= bytes
	return deviceError("free", native.FreeDevice(uint64(p)))
}

func (b *Backend) MallocHost(bytes int64) (gpu.HostBuffer, error) {
	b.state.Lock()
	defer b.state.Unlock()
	if b.closed {
		return gpu.HostBuffer{}, gpu.ErrDeviceClosed
	}
	if bytes <= 0 {
		return gpu.HostBuffer{}, fmt.Errorf("%w: host alloc size must be > 0", gpu.ErrInvalidValue)
	}
	h, err := native.AllocHostPinned(bytes)
	if err != nil {
		return gpu.HostBuffer{}, fmt.Errorf("%w: %d bytes: %w", gpu.ErrHostAlloc, bytes, err)
	}
	b.host[h.Ptr()] = bytes
	return gpu.NewHostBuffer(h.Ptr(), bytes), nil
}

func (b *Backend) FreeHost(h gpu.HostBuffer) error {
	if h.IsNull() {
		return nil
	}
	b.state.Lock()
	defer b.state.Unlock()
	if _, ok := b.host[h.Ptr()]; !ok {
		return fmt.Errorf("%w: host buffer %p", gpu.ErrInvalidPointer, h.Ptr())
	}
	delete(b.host, h.Ptr())
	return deviceError("free host", native.FreeHostPtr(h.Ptr()))
}

func (b *Backend) SetMatrixAsync(rows, cols, elemSize int, src unsafe.Pointer, lds int, dst gpu.DevicePtr, ldd int, s gpu.Stream) error {
	if err := gpu.CheckMatrixCopy(rows, cols, elemSize, lds, ldd); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}
	ns, err := b.resolve(s)
	if err != nil {
		return err
	}
	return transferError("set matrix", native.SetMatrixAsync(rows, cols, elemSize, src, lds, uint64(dst), ldd, ns))
}

func (b *Backend) GetMatrixAsync(rows, cols, elemSize int, src gpu.DevicePtr, lds int, dst unsafe.Pointer, ldd int, s gpu.Stream) error {
	if err := gpu.CheckMatrixCopy(rows, cols, elemSize, lds, ldd); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}
	ns, err := b.resolve(s)
	if err != nil {
		return err
	}
	return transferError("get matrix", native.GetMatrixAsync(rows, cols, elemSize, uint64(src), lds, dst, ldd, ns))
}

func (b *Backend) SetVectorAsync(n, elemSize int, src unsafe.Pointer, dst gpu.DevicePtr, s gpu.Stream) error {
	if n == 0 {
		return nil
	}
	ns, err := b.resolve(s)
	if err != nil {
		return err
	}
	return transferError("set vector", native.SetVectorAsync(n, elemSize, src, uint64(dst), ns))
}

func (b *Backend) GetVectorAsync(n, elemSize int, src gpu.DevicePtr, dst unsafe.Pointer, s gpu.Stream) error {
	if n == 0 {
		return nil
	}
	ns, err := b.resolve(s)
	if err != nil {
		return err
	}
	return transferError("get vector", native.GetVectorAsync(n, elemSize, uint64(src), dst, ns))
}

func (b *Backend) MemInfo() (gpu.MemInfo, error) {
	free, total, err := native.MemGetInfo()
	if err != nil {
		return gpu.MemInfo{}, deviceError("mem info", err)
	}
	b.state.Lock()
	defer b.state.Unlock()
	return gpu.MemInfo{
		Total:           total,
		Free:            free,
		Used:            b.used,
		Allocations:     len(b.device),
		HostAllocations: len(b.host),
	}, nil
}

// Close destroys remaining streams, frees leaked allocations and releases
// the cuBLAS handle.
func (b *Backend) Close() error {
	b.state.Lock()
	if b.closed {
		b.state.Unlock()
		return nil
	}
	b.closed = true
	live := make([]*stream, 0, len(b.streams))
	for s := range b.streams {
		live = append(live, s)
	}
	b.state.Unlock()

	var err error
	for _, s := range live {
		if e := s.Destroy(); e != nil && err == nil {
			err = e
		}
	}

	b.state.Lock()
	for p := range b.device {
		if e := native.FreeDevice(p); e != nil && err == nil {
			err = e
		}
	}
	for p := range b.host {
		if e := native.FreeHostPtr(p); e != nil && err == nil {
			err = e
		}
	}
	b.device = map[uint64]int64{}
	b.host = map[unsafe.Pointer]int64{}
	b.used = 0
	b.state.Unlock()

	if e := b.blas.Destroy(); e != nil && err == nil {
		err = e
	}
	return err
}
