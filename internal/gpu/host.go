package gpu

import "unsafe"

// HostBuffer is page-locked host memory owned by a Device. It must be
// released with Device.FreeHost and must not be used afterwards.
type HostBuffer struct {
	ptr   unsafe.Pointer
	bytes int64
}

// NewHostBuffer wraps memory allocated by a backend.
func NewHostBuffer(ptr unsafe.Pointer, bytes int64) HostBuffer {
	return HostBuffer{ptr: ptr, bytes: bytes}
}

func (b HostBuffer) Ptr() unsafe.Pointer {
	return b.ptr
}

func (b HostBuffer) Bytes() int64 {
	return b.bytes
}

func (b HostBuffer) IsNull() bool {
	return b.ptr == nil
}

func (b HostBuffer) Float32() []float32 {
	if b.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float32)(b.ptr), b.bytes/4)
}

func (b HostBuffer) Int32() []int32 {
	if b.ptr == nil {
		return nil
	}
	return unsafe.Slice((*int32)(b.ptr), b.bytes/4)
}

func (b HostBuffer) Uint64() []uint64 {
	if b.ptr == nil {
		return nil
	}
	return unsafe.Slice((*uint64)(b.ptr), b.bytes/8)
}
