package batched

import (
	"fmt"

	"github.com/samcharles93/batchlu/internal/gpu"
)

// resources owns every stream and buffer of one call. Nothing is pooled
// across calls.
type resources struct {
	dev     gpu.Device
	streams *streamSet

	// Pinned host memory. hostX stages B on the way in and receives X on
	// the way out; hostPtrs holds the three pointer tables back to back.
	hostA    gpu.HostBuffer
	hostX    gpu.HostBuffer
	hostInfo gpu.HostBuffer
	hostPtrs gpu.HostBuffer

	dA, dB, dPiv, dInfo         gpu.DevicePtr
	dAArray, dBArray, dPivArray gpu.DevicePtr

	released bool
}

// acquire allocates in a fixed order and stops at the first failure, after
// releasing everything acquired so far. The streams are owned by the
// returned resources from the moment acquire is called.
func acquire(dev gpu.Device, l Layout, streams *streamSet) (*resources, error) {
	r := &resources{dev: dev, streams: streams}
	count := int64(l.Count)

	hosts := []struct {
		name  string
		dst   *gpu.HostBuffer
		bytes int64
	}{
		{"host matrices", &r.hostA, l.HostAElems() * float32Size},
		{"host solution", &r.hostX, l.HostBElems() * float32Size},
		{"host status", &r.hostInfo, count * int32Size},
	}
	for _, h := range hosts {
		buf, err := dev.MallocHost(h.bytes)
		if err != nil {
			_ = r.release()
			return nil, deviceError("allocate "+h.name, err)
		}
		*h.dst = buf
	}

	devices := []struct {
		name  string
		dst   *gpu.DevicePtr
		bytes int64
	}{
		{"device matrices", &r.dA, l.DeviceAElems() * float32Size},
		{"device rhs", &r.dB, l.DeviceBElems() * float32Size},
		{"device pivots", &r.dPiv, l.PivotElems() * int32Size},
		{"device status", &r.dInfo, count * int32Size},
		{"matrix pointer array", &r.dAArray, count * pointerSize},
		{"rhs pointer array", &r.dBArray, count * pointerSize},
		{"pivot pointer array", &r.dPivArray, count * pointerSize},
	}
	for _, d := range devices {
		p, err := dev.Malloc(d.bytes)
		if err != nil {
			_ = r.release()
			return nil, deviceError("allocate "+d.name, err)
		}
		*d.dst = p
	}

	buf, err := dev.MallocHost(int64(numRoles) * count * pointerSize)
	if err != nil {
		_ = r.release()
		return nil, deviceError("allocate pointer staging", err)
	}
	r.hostPtrs = buf
	return r, nil
}

// pointerStaging returns the pinned staging slice for one pointer table.
func (r *resources) pointerStaging(ro role, count int) []uint64 {
	all := r.hostPtrs.Uint64()
	return all[int(ro)*count : (int(ro)+1)*count]
}

// release synchronises and destroys the streams, then frees buffers in the
// reverse of acquisition order. Zero handles are skipped, the first error is
// returned, and calls after the first are no-ops.
func (r *resources) release() error {
	if r == nil || r.released {
		return nil
	}
	r.released = true

	err := r.streams.destroy()

	freeHost := func(name string, b *gpu.HostBuffer) {
		if e := r.dev.FreeHost(*b); e != nil && err == nil {
			err = fmt.Errorf("free %s: %w", name, e)
		}
		*b = gpu.HostBuffer{}
	}
	free := func(name string, p *gpu.DevicePtr) {
		if e := r.dev.Free(*p); e != nil && err == nil {
			err = fmt.Errorf("free %s: %w", name, e)
		}
		*p = 0
	}

	freeHost("pointer staging", &r.hostPtrs)
	free("pivot pointer array", &r.dPivArray)
	free("rhs pointer array", &r.dBArray)
	free("matrix pointer array", &r.dAArray)
	free("device status", &r.dInfo)
	free("device pivots", &r.dPiv)
	free("device rhs", &r.dB)
	free("device matrices", &r.dA)
	freeHost("host status", &r.hostInfo)
	freeHost("host solution", &r.hostX)
	freeHost("host matrices", &r.hostA)
	return err
}
