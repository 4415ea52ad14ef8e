// Package gpu defines the accelerator surface the batched solver is written
// against: device and pinned host memory, ordered execution streams, pitched
// asynchronous copies and a batched LU provider. Backends under
// internal/backend implement it.
package gpu

import (
	"context"
	"unsafe"
)

// DevicePtr is an address in device memory. The zero value is the null pointer.
type DevicePtr uint64

// Add returns p advanced by the given number of bytes.
func (p DevicePtr) Add(bytes int64) DevicePtr {
	return p + DevicePtr(bytes)
}

func (p DevicePtr) IsNull() bool {
	return p == 0
}

// Stream is an ordered queue of asynchronous device operations. Operations
// issued to one stream run in issue order; operations on different streams
// are unordered unless the host synchronises in between.
type Stream interface {
	// Synchronize blocks until all work issued so far has completed and
	// returns the first asynchronous error raised on the stream.
	Synchronize() error
	// Destroy waits for pending work and releases the stream. Destroying a
	// destroyed stream is a no-op.
	Destroy() error
}

// MemInfo reports device memory accounting.
type MemInfo struct {
	Total int64
	Free  int64
	Used  int64
	// Allocations is the number of live device allocations made through
	// this device. HostAllocations counts live pinned host buffers.
	Allocations     int
	HostAllocations int
}

// Device is the memory and transfer half of a backend.
//
// Matrix copies follow the cuBLAS Set/GetMatrix convention: rows×cols
// elements of elemSize bytes, column-major, with independent leading
// dimensions (in elements) on each side.
type Device interface {
	Name() string
	NewStream() (Stream, error)

	Malloc(bytes int64) (DevicePtr, error)
	// Free releases a device allocation. Freeing the null pointer is a no-op.
	Free(p DevicePtr) error
	MallocHost(bytes int64) (HostBuffer, error)
	FreeHost(b HostBuffer) error

	SetMatrixAsync(rows, cols, elemSize int, src unsafe.Pointer, lds int, dst DevicePtr, ldd int, s Stream) error
	GetMatrixAsync(rows, cols, elemSize int, src DevicePtr, lds int, dst unsafe.Pointer, ldd int, s Stream) error
	SetVectorAsync(n, elemSize int, src unsafe.Pointer, dst DevicePtr, s Stream) error
	GetVectorAsync(n, elemSize int, src DevicePtr, dst unsafe.Pointer, s Stream) error

	MemInfo() (MemInfo, error)
	Close() error
}

// FactorArgs describes one batched LU factorization. AArray and PivArray are
// device arrays of Count device addresses. Pivots is the base of the
// contiguous pivot arena that PivArray points into, for providers that take
// pivots as one block. Info receives Count int32 status codes.
type FactorArgs struct {
	N        int
	AArray   DevicePtr
	LDDA     int
	PivArray DevicePtr
	Pivots   DevicePtr
	Info     DevicePtr
	Count    int
}

// SolveArgs describes one batched solve A·X = B; BArray holds Count device
// addresses of N×NRHS right-hand sides that are overwritten with X.
type SolveArgs struct {
	N        int
	NRHS     int
	AArray   DevicePtr
	LDDA     int
	PivArray DevicePtr
	Pivots   DevicePtr
	BArray   DevicePtr
	LDDB     int
	Info     DevicePtr
	Count    int
}

// Factor returns the factorization part of a solve.
func (a SolveArgs) Factor() FactorArgs {
	return FactorArgs{
		N:        a.N,
		AArray:   a.AArray,
		LDDA:     a.LDDA,
		PivArray: a.PivArray,
		Pivots:   a.Pivots,
		Info:     a.Info,
		Count:    a.Count,
	}
}

// Provider is a batched LU kernel library. Every method returns an aggregate
// status: 0 on success, -k when argument k is illegal, or the first non-zero
// per-matrix code in batch order. A non-nil error means the device itself
// failed and the status is meaningless.
type Provider interface {
	Factorize(ctx context.Context, args FactorArgs, s Stream) (int, error)
	SolveFactored(ctx context.Context, args SolveArgs, s Stream) (int, error)
	FactorizeSolve(ctx context.Context, args SolveArgs, s Stream) (int, error)
}

// Backend bundles a device with the provider that runs on it.
type Backend interface {
	Device
	Provider
}
