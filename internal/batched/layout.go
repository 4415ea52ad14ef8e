package batched

// deviceAlign is the leading-dimension granularity of device matrices, in
// elements.
const deviceAlign = 32

const (
	float32Size = 4
	int32Size   = 4
	pointerSize = 8
)

// Layout derives every buffer size of one batched solve. Host matrices are
// packed with leading dimension N; device matrices are padded to a multiple
// of deviceAlign.
type Layout struct {
	N, NRHS, Count int
	LDA, LDB       int
	LDDA, LDDB     int
}

func NewLayout(n, nrhs, count int) Layout {
	ldd := roundUp(max(n, 1), deviceAlign)
	return Layout{
		N:     n,
		NRHS:  nrhs,
		Count: count,
		LDA:   max(n, 1),
		LDB:   max(n, 1),
		LDDA:  ldd,
		LDDB:  ldd,
	}
}

// Empty reports whether the batch has no work.
func (l Layout) Empty() bool {
	return l.N == 0 || l.NRHS == 0 || l.Count == 0
}

func (l Layout) HostAElems() int64 { return int64(l.N) * int64(l.N) * int64(l.Count) }
func (l Layout) HostBElems() int64 { return int64(l.N) * int64(l.NRHS) * int64(l.Count) }

func (l Layout) DeviceAElems() int64 { return int64(l.LDDA) * int64(l.N) * int64(l.Count) }
func (l Layout) DeviceBElems() int64 { return int64(l.LDDB) * int64(l.NRHS) * int64(l.Count) }
func (l Layout) PivotElems() int64 { return int64(l.N) * int64(l.Count) }

// Strides between consecutive matrices of each device arena, in bytes.
func (l Layout) AStride() int64 { return int64(l.LDDA) * int64(l.N) * float32Size }
func (l Layout) BStride() int64 { return int64(l.LDDB) * int64(l.NRHS) * float32Size }
func (l Layout) PivotStride() int64 { return int64(l.N) * int32Size }

func roundUp(x, m int) int {
	return (x + m - 1) / m * m
}
