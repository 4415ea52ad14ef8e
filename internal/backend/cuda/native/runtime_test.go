//go:build cuda

package native

import (
	"testing"
	"unsafe"
)

func requireDevice(t *testing.T) {
	t.Helper()
	count, err := DeviceCount()
	if err != nil {
		t.Fatalf("DeviceCount: %v", err)
	}
	if count < 1 {
		t.Skip("no cuda device available")
	}
}

func newTestStream(t *testing.T) Stream {
	t.Helper()
	stream, err := NewStream()
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	t.Cleanup(func() {
		if err := stream.Destroy(); err != nil {
			t.Fatalf("stream destroy: %v", err)
		}
	})
	return stream
}

func allocPinned[T any](t *testing.T, n int) []T {
	t.Helper()
	var zero T
	buf, err := AllocHostPinned(int64(n) * int64(unsafe.Sizeof(zero)))
	if err != nil {
		t.Fatalf("AllocHostPinned: %v", err)
	}
	t.Cleanup(func() {
		if err := buf.Free(); err != nil {
			t.Fatalf("host free: %v", err)
		}
	})
	return unsafe.Slice((*T)(buf.Ptr()), n)
}

func allocDevice(t *testing.T, bytes int64) uint64 {
	t.Helper()
	ptr, err := AllocDevice(bytes)
	if err != nil {
		t.Fatalf("AllocDevice: %v", err)
	}
	t.Cleanup(func() {
		if err := FreeDevice(ptr); err != nil {
			t.Fatalf("device free: %v", err)
		}
	})
	return ptr
}

func TestPitchedMatrixRoundTrip(t *testing.T) {
	requireDevice(t)
	stream := newTestStream(t)

	const rows, cols, ldd = 5, 3, 32
	in := allocPinned[float32](t, rows*cols)
	out := allocPinned[float32](t, rows*cols)
	for i := range in {
		in[i] = float32(i) * 1.25
		out[i] = 0
	}
	dev := allocDevice(t, ldd*cols*4)

	if err := SetMatrixAsync(rows, cols, 4, unsafe.Pointer(&in[0]), rows, dev, ldd, stream); err != nil {
		t.Fatalf("SetMatrixAsync: %v", err)
	}
	if err := GetMatrixAsync(rows, cols, 4, dev, ldd, unsafe.Pointer(&out[0]), rows, stream); err != nil {
		t.Fatalf("GetMatrixAsync: %v", err)
	}
	if err := stream.Synchronize(); err != nil {
		t.Fatalf("stream synchronize: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("mismatch at %d: got %v want %v", i, out[i], in[i])
		}
	}
}

func TestMemGetInfo(t *testing.T) {
	requireDevice(t)
	free, total, err := MemGetInfo()
	if err != nil {
		t.Fatalf("MemGetInfo: %v", err)
	}
	if total <= 0 || free < 0 || free > total {
		t.Fatalf("implausible memory info: free=%d total=%d", free, total)
	}
}

func TestSgetrfSgetrsBatched(t *testing.T) {
	requireDevice(t)
	stream := newTestStream(t)

	blas, err := NewBlasHandle()
	if err != nil {
		t.Fatalf("NewBlasHandle: %v", err)
	}
	defer func() {
		if err := blas.Destroy(); err != nil {
			t.Fatalf("blas destroy: %v", err)
		}
	}()
	if err := blas.SetStream(stream); err != nil {
		t.Fatalf("SetStream: %v", err)
	}

	const n, count, ld = 2, 2, 32
	// Column-major [[4 3] [6 3]] and the identity.
	a := allocPinned[float32](t, n*n*count)
	copy(a, []float32{4, 6, 3, 3, 1, 0, 0, 1})
	b := allocPinned[float32](t, n*count)
	copy(b, []float32{10, 12, 3, 4})
	ptrs := allocPinned[uint64](t, 2*count)
	info := allocPinned[int32](t, count)

	dA := allocDevice(t, ld*n*count*4)
	dB := allocDevice(t, ld*count*4)
	dP := allocDevice(t, n*count*4)
	dInfo := allocDevice(t, count*4)
	dAArray := allocDevice(t, count*8)
	dBArray := allocDevice(t, count*8)

	for i := range count {
		ptrs[i] = dA + uint64(i*ld*n*4)
		ptrs[count+i] = dB + uint64(i*ld*4)
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"set A", func() error { return SetMatrixAsync(n, n*count, 4, unsafe.Pointer(&a[0]), n, dA, ld, stream) }},
		{"set B", func() error { return SetMatrixAsync(n, count, 4, unsafe.Pointer(&b[0]), n, dB, ld, stream) }},
		{"set A array", func() error { return SetVectorAsync(count, 8, unsafe.Pointer(&ptrs[0]), dAArray, stream) }},
		{"set B array", func() error { return SetVectorAsync(count, 8, unsafe.Pointer(&ptrs[count]), dBArray, stream) }},
		{"getrf", func() error { return SgetrfBatched(blas, n, dAArray, ld, dP, dInfo, count) }},
		{"get info", func() error { return GetVectorAsync(count, 4, dInfo, unsafe.Pointer(&info[0]), stream) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
	}
	if err := stream.Synchronize(); err != nil {
		t.Fatalf("stream synchronize: %v", err)
	}
	for i, code := range info {
		if code != 0 {
			t.Fatalf("matrix %d info = %d", i, code)
		}
	}

	code, err := SgetrsBatched(blas, n, 1, dAArray, ld, dP, dBArray, ld, count)
	if err != nil || code != 0 {
		t.Fatalf("SgetrsBatched: code=%d err=%v", code, err)
	}
	if err := GetMatrixAsync(n, count, 4, dB, ld, unsafe.Pointer(&b[0]), n, stream); err != nil {
		t.Fatalf("GetMatrixAsync: %v", err)
	}
	if err := stream.Synchronize(); err != nil {
		t.Fatalf("stream synchronize: %v", err)
	}

	want := []float32{1, 2, 3, 4}
	for i := range want {
		if !approxEqual(want[i], b[i], 1e-4) {
			t.Fatalf("x[%d] = %v want %v", i, b[i], want[i])
		}
	}
}

func approxEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= eps
}
