package batched

import (
	"fmt"
	"unsafe"

	"github.com/samcharles93/batchlu/internal/gpu"
)

// pointerTable returns the base addresses of count matrices laid out stride
// bytes apart from base.
func pointerTable(base gpu.DevicePtr, stride int64, count int) []gpu.DevicePtr {
	table := make([]gpu.DevicePtr, count)
	for i := range table {
		table[i] = base.Add(int64(i) * stride)
	}
	return table
}

// buildPointerArray fills staging with the addresses of an arena and
// uploads them to dst on stream s. staging must be pinned memory with room
// for count entries and must stay untouched until s is synchronised. The
// arena's own upload has to be issued on s first.
func buildPointerArray(dev gpu.Device, staging []uint64, dst, base gpu.DevicePtr, stride int64, count int, s gpu.Stream) error {
	if count == 0 {
		return nil
	}
	if len(staging) < count {
		return fmt.Errorf("%w: pointer staging holds %d of %d entries", gpu.ErrInvalidValue, len(staging), count)
	}
	for i := range count {
		staging[i] = uint64(base.Add(int64(i) * stride))
	}
	return dev.SetVectorAsync(count, pointerSize, unsafe.Pointer(&staging[0]), dst, s)
}
