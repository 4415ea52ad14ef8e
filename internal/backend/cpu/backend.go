// Package cpu is an emulated accelerator. Device memory is anonymous mapped
// memory addressed by raw addresses, streams are FIFO worker goroutines, and
// the batched LU provider runs gonum's LAPACK kernels across the batch.
package cpu

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/samcharles93/batchlu/internal/gpu"
)

const Name = "cpu"

type Options struct {
	// DeviceMemoryLimit caps device allocations in bytes; 0 means system memory.
	DeviceMemoryLimit int64
	// Workers bounds the goroutines a batched kernel fans out to; 0 means NumCPU.
	Workers int
}

type Backend struct {
	mem     *memoryTable
	workers int

	mu       sync.Mutex
	streams  map[*stream]struct{}
	nextID   int
	fallback *stream
	closed   bool
}

var _ gpu.Backend = (*Backend)(nil)

func New(opts Options) *Backend {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	b := &Backend{
		mem:     newMemoryTable(opts.DeviceMemoryLimit),
		workers: workers,
		streams: make(map[*stream]struct{}),
	}
	b.fallback = newStream(0, nil)
	return b
}

func (b *Backend) Name() string {
	return Name
}

func (b *Backend) NewStream() (gpu.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, gpu.ErrDeviceClosed
	}
	b.nextID++
	s := newStream(b.nextID, b)
	b.streams[s] = struct{}{}
	return s, nil
}

func (b *Backend) forgetStream(s *stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.streams, s)
}

// stream resolves a caller stream; nil selects the legacy default stream.
func (b *Backend) stream(s gpu.Stream) (*stream, error) {
	if s == nil {
		return b.fallback, nil
	}
	st, ok := s.(*stream)
	if !ok || (st.owner != b) {
		return nil, fmt.Errorf("%w: %T", gpu.ErrForeignStream, s)
	}
	return st, nil
}

// synchronizeAll drains every stream, as an implicit device-wide barrier.
func (b *Backend) synchronizeAll() error {
	b.mu.Lock()
	live := make([]*stream, 0, len(b.streams)+1)
	live = append(live, b.fallback)
	for s := range b.streams {
		live = append(live, s)
	}
	b.mu.Unlock()

	var err error
	for _, s := range live {
		if e := s.Synchronize(); e != nil && err == nil && e != gpu.ErrStreamDestroyed {
			err = e
		}
	}
	return err
}

func (b *Backend) Malloc(bytes int64) (gpu.DevicePtr, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	r, err := b.mem.alloc(bytes, false)
	if err != nil {
		return 0, err
	}
	return gpu.DevicePtr(r.base), nil
}

// Free waits for in-flight work before unmapping, so a pending copy never
// touches released memory.
func (b *Backend) Free(p gpu.DevicePtr) error {
	if p.IsNull() {
		return nil
	}
	_ = b.synchronizeAll()
	return b.mem.free(uint64(p), false)
}

func (b *Backend) MallocHost(bytes int64) (gpu.HostBuffer, error) {
	if err := b.checkOpen(); err != nil {
		return gpu.HostBuffer{}, err
	}
	r, err := b.mem.alloc(bytes, true)
	if err != nil {
		return gpu.HostBuffer{}, err
	}
	return gpu.NewHostBuffer(unsafe.Pointer(&r.data[0]), int64(len(r.data))), nil
}

func (b *Backend) FreeHost(h gpu.HostBuffer) error {
	if h.IsNull() {
		return nil
	}
	_ = b.synchronizeAll()
	return b.mem.free(uint64(uintptr(h.Ptr())), true)
}

func (b *Backend) MemInfo() (gpu.MemInfo, error) {
	return b.mem.info(), nil
}

// PeakMemory reports the high-water mark of device allocations in bytes.
func (b *Backend) PeakMemory() int64 {
	return b.mem.peak()
}

func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	live := make([]*stream, 0, len(b.streams))
	for s := range b.streams {
		live = append(live, s)
	}
	b.mu.Unlock()

	var err error
	for _, s := range live {
		if e := s.Destroy(); e != nil && err == nil {
			err = e
		}
	}
	if e := b.fallback.Destroy(); e != nil && err == nil {
		err = e
	}
	if e := b.mem.releaseAll(); e != nil && err == nil {
		err = e
	}
	return err
}

func (b *Backend) checkOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return gpu.ErrDeviceClosed
	}
	return nil
}
