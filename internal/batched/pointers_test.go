package batched

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/batchlu/internal/gpu"
)

func TestPointerTable(t *testing.T) {
	table := pointerTable(0x1000, 256, 3)
	assert.Equal(t, []gpu.DevicePtr{0x1000, 0x1100, 0x1200}, table)
	assert.Empty(t, pointerTable(0x1000, 256, 0))
}

func TestBuildPointerArray(t *testing.T) {
	dev := newCPU(t)
	const count = 4
	l := NewLayout(3, 1, count)

	base, err := dev.Malloc(l.DeviceAElems() * float32Size)
	require.NoError(t, err)
	defer dev.Free(base)
	dst, err := dev.Malloc(count * pointerSize)
	require.NoError(t, err)
	defer dev.Free(dst)
	staging, err := dev.MallocHost(count * pointerSize)
	require.NoError(t, err)
	defer dev.FreeHost(staging)

	s, err := dev.NewStream()
	require.NoError(t, err)
	defer s.Destroy()

	require.NoError(t, buildPointerArray(dev, staging.Uint64(), dst, base, l.AStride(), count, s))
	got := make([]uint64, count)
	require.NoError(t, dev.GetVectorAsync(count, pointerSize, dst, unsafe.Pointer(&got[0]), s))
	require.NoError(t, s.Synchronize())

	for i, p := range pointerTable(base, l.AStride(), count) {
		assert.Equal(t, uint64(p), got[i], "entry %d", i)
	}
	// LDDA is 32, so consecutive matrices sit 32*3 floats apart.
	assert.Equal(t, uint64(32*3*4), got[1]-got[0])
}

func TestBuildPointerArrayShortStaging(t *testing.T) {
	dev := newCPU(t)
	err := buildPointerArray(dev, make([]uint64, 2), 0x1000, 0x2000, 64, 3, nil)
	assert.ErrorIs(t, err, gpu.ErrInvalidValue)

	assert.NoError(t, buildPointerArray(dev, nil, 0, 0, 64, 0, nil))
}
