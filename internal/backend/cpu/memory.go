package cpu

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"github.com/samcharles93/batchlu/internal/gpu"
)

const defaultSystemMemory = 16 << 30

type region struct {
	base uint64
	data []byte
	host bool
}

func (r *region) end() uint64 {
	return r.base + uint64(len(r.data))
}

// memoryTable tracks every live allocation sorted by base address so interior
// pointers (a matrix inside a batch arena) resolve to their region.
type memoryTable struct {
	mu      sync.Mutex
	regions []*region
	total   int64

	deviceBytes int64
	peakBytes   int64
	deviceCount int
	hostCount   int
}

func newMemoryTable(limit int64) *memoryTable {
	total := systemMemory()
	if limit > 0 && limit < total {
		total = limit
	}
	return &memoryTable{total: total}
}

func (m *memoryTable) alloc(bytes int64, host bool) (*region, error) {
	kind := "device"
	sentinel := gpu.ErrOutOfMemory
	if host {
		kind = "host"
		sentinel = gpu.ErrHostAlloc
	}
	if bytes <= 0 {
		return nil, fmt.Errorf("%w: %s alloc size must be > 0", gpu.ErrInvalidValue, kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !host && m.deviceBytes+bytes > m.total {
		return nil, fmt.Errorf("%w: need %d bytes, %d available", sentinel, bytes, m.total-m.deviceBytes)
	}
	data, err := mapMemory(int(bytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s alloc of %d bytes: %v", sentinel, kind, bytes, err)
	}
	r := &region{
		base: uint64(uintptr(unsafe.Pointer(&data[0]))),
		data: data,
		host: host,
	}

	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].base > r.base })
	m.regions = append(m.regions, nil)
	copy(m.regions[i+1:], m.regions[i:])
	m.regions[i] = r

	if host {
		m.hostCount++
	} else {
		m.deviceCount++
		m.deviceBytes += bytes
		if m.deviceBytes > m.peakBytes {
			m.peakBytes = m.deviceBytes
		}
	}
	return r, nil
}

func (m *memoryTable) free(base uint64, host bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].base >= base })
	if i == len(m.regions) || m.regions[i].base != base || m.regions[i].host != host {
		return fmt.Errorf("%w: 0x%x is not the base of a live allocation", gpu.ErrInvalidPointer, base)
	}
	r := m.regions[i]
	m.regions = append(m.regions[:i], m.regions[i+1:]...)

	if host {
		m.hostCount--
	} else {
		m.deviceCount--
		m.deviceBytes -= int64(len(r.data))
	}
	return unmapMemory(r.data)
}

// device resolves [addr, addr+bytes) to the backing slice of a device region.
func (m *memoryTable) device(addr uint64, bytes int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].base > addr }) - 1
	if i < 0 {
		return nil, fmt.Errorf("%w: 0x%x", gpu.ErrInvalidPointer, addr)
	}
	r := m.regions[i]
	if r.host || addr+uint64(bytes) > r.end() {
		return nil, fmt.Errorf("%w: [0x%x, +%d) outside device allocation", gpu.ErrInvalidPointer, addr, bytes)
	}
	off := addr - r.base
	return r.data[off : off+uint64(bytes) : off+uint64(bytes)], nil
}

func (m *memoryTable) info() gpu.MemInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gpu.MemInfo{
		Total:           m.total,
		Free:            m.total - m.deviceBytes,
		Used:            m.deviceBytes,
		Allocations:     m.deviceCount,
		HostAllocations: m.hostCount,
	}
}

func (m *memoryTable) peak() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakBytes
}

// releaseAll unmaps every region still live at device close.
func (m *memoryTable) releaseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for _, r := range m.regions {
		if e := unmapMemory(r.data); e != nil && err == nil {
			err = e
		}
	}
	m.regions = nil
	m.deviceBytes = 0
	m.deviceCount = 0
	m.hostCount = 0
	return err
}

func float32s(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

func int32s(b []byte) []int32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4)
}

func uint64s(b []byte) []uint64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}
