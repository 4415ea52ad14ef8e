package cpu

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/batchlu/internal/gpu"
)

func gpuPtr[T any](s []T) unsafe.Pointer {
	return unsafe.Pointer(&s[0])
}

func TestMallocAccounting(t *testing.T) {
	b := New(Options{DeviceMemoryLimit: 1 << 20})
	defer b.Close()

	info, err := b.MemInfo()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), info.Total)
	assert.Equal(t, int64(1<<20), info.Free)

	p, err := b.Malloc(4096)
	require.NoError(t, err)
	q, err := b.Malloc(8192)
	require.NoError(t, err)
	h, err := b.MallocHost(128)
	require.NoError(t, err)

	info, _ = b.MemInfo()
	assert.Equal(t, int64(4096+8192), info.Used)
	assert.Equal(t, 2, info.Allocations)
	assert.Equal(t, 1, info.HostAllocations)

	require.NoError(t, b.Free(p))
	require.NoError(t, b.Free(q))
	require.NoError(t, b.FreeHost(h))
	require.NoError(t, b.Free(0))
	require.NoError(t, b.FreeHost(gpu.HostBuffer{}))

	info, _ = b.MemInfo()
	assert.Zero(t, info.Used)
	assert.Zero(t, info.Allocations)
	assert.Zero(t, info.HostAllocations)
	assert.Equal(t, int64(4096+8192), b.PeakMemory())
}

func TestMallocLimit(t *testing.T) {
	b := New(Options{DeviceMemoryLimit: 4096})
	defer b.Close()

	p, err := b.Malloc(4096)
	require.NoError(t, err)
	_, err = b.Malloc(1)
	assert.ErrorIs(t, err, gpu.ErrOutOfMemory)
	_, err = b.Malloc(0)
	assert.ErrorIs(t, err, gpu.ErrInvalidValue)

	// Host memory is not charged against the device limit.
	h, err := b.MallocHost(1 << 16)
	require.NoError(t, err)
	require.NoError(t, b.FreeHost(h))
	require.NoError(t, b.Free(p))
}

func TestFreeRejectsInteriorPointer(t *testing.T) {
	b := New(Options{})
	defer b.Close()

	p, err := b.Malloc(256)
	require.NoError(t, err)
	assert.ErrorIs(t, b.Free(p.Add(16)), gpu.ErrInvalidPointer)
	require.NoError(t, b.Free(p))
	assert.ErrorIs(t, b.Free(p), gpu.ErrInvalidPointer)
}

func TestPitchedRoundTrip(t *testing.T) {
	b := New(Options{})
	defer b.Close()

	s, err := b.NewStream()
	require.NoError(t, err)
	defer s.Destroy()

	const rows, cols, ldd = 3, 2, 32
	src := []float32{1, 2, 3, 4, 5, 6}
	p, err := b.Malloc(int64(ldd * cols * 4))
	require.NoError(t, err)
	defer b.Free(p)

	require.NoError(t, b.SetMatrixAsync(rows, cols, 4, gpuPtr(src), rows, p, ldd, s))
	dst := make([]float32, rows*cols)
	require.NoError(t, b.GetMatrixAsync(rows, cols, 4, p, ldd, gpuPtr(dst), rows, s))
	require.NoError(t, s.Synchronize())
	assert.Equal(t, src, dst)

	// The second column starts ldd elements into the device buffer.
	raw, err := b.mem.device(uint64(p.Add(ldd*4)), 4)
	require.NoError(t, err)
	assert.Equal(t, float32(4), float32s(raw)[0])
}

func TestCopyOutsideAllocation(t *testing.T) {
	b := New(Options{})
	defer b.Close()

	p, err := b.Malloc(16)
	require.NoError(t, err)
	defer b.Free(p)

	src := make([]float32, 8)
	err = b.SetVectorAsync(8, 4, gpuPtr(src), p, nil)
	assert.ErrorIs(t, err, gpu.ErrTransfer)
	assert.ErrorIs(t, err, gpu.ErrInvalidPointer)

	err = b.SetMatrixAsync(4, 1, 4, gpuPtr(src), 2, p, 4, nil)
	assert.ErrorIs(t, err, gpu.ErrInvalidValue)
}
