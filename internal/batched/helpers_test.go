package batched

import (
	"fmt"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/samcharles93/batchlu/internal/backend/cpu"
	"github.com/samcharles93/batchlu/internal/gpu"
)

func newCPU(t *testing.T) *cpu.Backend {
	t.Helper()
	b := cpu.New(cpu.Options{DeviceMemoryLimit: 64 << 20, Workers: 2})
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// faultyBackend injects failures into an otherwise working backend.
type faultyBackend struct {
	gpu.Backend

	mu sync.Mutex
	// failAlloc fails the allocation with this 1-based sequence number,
	// counting device and pinned host allocations together.
	failAlloc int
	allocs    int
	// failUpload fails every host-to-device matrix copy.
	failUpload bool
}

func (f *faultyBackend) next() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allocs++
	return f.allocs == f.failAlloc
}

func (f *faultyBackend) Malloc(bytes int64) (gpu.DevicePtr, error) {
	if f.next() {
		return 0, fmt.Errorf("%w: injected", gpu.ErrOutOfMemory)
	}
	return f.Backend.Malloc(bytes)
}

func (f *faultyBackend) MallocHost(bytes int64) (gpu.HostBuffer, error) {
	if f.next() {
		return gpu.HostBuffer{}, fmt.Errorf("%w: injected", gpu.ErrHostAlloc)
	}
	return f.Backend.MallocHost(bytes)
}

func (f *faultyBackend) SetMatrixAsync(rows, cols, elemSize int, src unsafe.Pointer, lds int, dst gpu.DevicePtr, ldd int, s gpu.Stream) error {
	if f.failUpload {
		return fmt.Errorf("%w: injected", gpu.ErrTransfer)
	}
	return f.Backend.SetMatrixAsync(rows, cols, elemSize, src, lds, dst, ldd, s)
}

// requireNoLiveMemory asserts that every device and host buffer was freed.
func requireNoLiveMemory(t *testing.T, dev gpu.Device) {
	t.Helper()
	info, err := dev.MemInfo()
	require.NoError(t, err)
	require.Zero(t, info.Allocations, "live device allocations")
	require.Zero(t, info.HostAllocations, "live host allocations")
	require.Zero(t, info.Used, "device bytes in use")
}

type recordedReport struct {
	label string
	arg   int
}

type recorder struct {
	mu      sync.Mutex
	reports []recordedReport
}

func (r *recorder) Report(label string, arg int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, recordedReport{label, arg})
}
