//go:build cuda

package native

/*
#cgo LDFLAGS: -lcudart -lcublas

#include <stdint.h>

// Minimal CUDA runtime forward declarations to avoid requiring headers at compile time.
// Linker will still require libcudart and libcublas when building with the cuda tag.
typedef void* cudaStream_t;
typedef int cudaError_t;

extern const char* cudaGetErrorString(cudaError_t err);
extern cudaError_t cudaGetDeviceCount(int* count);
extern cudaError_t cudaDriverGetVersion(int* version);
extern cudaError_t cudaStreamCreate(cudaStream_t* stream);
extern cudaError_t cudaStreamDestroy(cudaStream_t stream);
extern cudaError_t cudaStreamSynchronize(cudaStream_t stream);
extern cudaError_t cudaMalloc(void** ptr, unsigned long long size);
extern cudaError_t cudaFree(void* ptr);
extern cudaError_t cudaMallocHost(void** ptr, unsigned long long size);
extern cudaError_t cudaFreeHost(void* ptr);
extern cudaError_t cudaMemGetInfo(unsigned long long* free, unsigned long long* total);

typedef struct cublasContext* cublasHandle_t;
typedef int cublasStatus_t;

extern cublasStatus_t cublasCreate_v2(cublasHandle_t* handle);
extern cublasStatus_t cublasDestroy_v2(cublasHandle_t handle);
extern cublasStatus_t cublasSetStream_v2(cublasHandle_t handle, cudaStream_t stream);
extern cublasStatus_t cublasSetMatrixAsync(int rows, int cols, int elemSize, const void* A, int lda, void* B, int ldb, cudaStream_t stream);
extern cublasStatus_t cublasGetMatrixAsync(int rows, int cols, int elemSize, const void* A, int lda, void* B, int ldb, cudaStream_t stream);
extern cublasStatus_t cublasSetVectorAsync(int n, int elemSize, const void* x, int incx, void* y, int incy, cudaStream_t stream);
extern cublasStatus_t cublasGetVectorAsync(int n, int elemSize, const void* x, int incx, void* y, int incy, cudaStream_t stream);
extern cublasStatus_t cublasSgetrfBatched(
	cublasHandle_t handle,
	int n,
	float* const A[],
	int lda,
	int* P,
	int* info,
	int batchSize);
extern cublasStatus_t cublasSgetrsBatched(
	cublasHandle_t handle,
	int trans,
	int n,
	int nrhs,
	const float* const A[],
	int lda,
	const int* devIpiv,
	float* const B[],
	int ldb,
	int* info,
	int batchSize);

#define DEV(p) ((void*)(uintptr_t)(p))

static const char* batchluCudaGetErrorString(cudaError_t err) {
	return cudaGetErrorString(err);
}

static int batchluCudaGetDeviceCount(int* out) {
	return (int)cudaGetDeviceCount(out);
}

static int batchluCudaDriverGetVersion(int* out) {
	return (int)cudaDriverGetVersion(out);
}

static int batchluCudaStreamCreate(cudaStream_t* out) {
	return (int)cudaStreamCreate(out);
}

static int batchluCudaStreamDestroy(cudaStream_t stream) {
	return (int)cudaStreamDestroy(stream);
}

static int batchluCudaStreamSynchronize(cudaStream_t stream) {
	return (int)cudaStreamSynchronize(stream);
}

static int batchluCudaMalloc(unsigned long long* out, unsigned long long size) {
	void* ptr = 0;
	cudaError_t err = cudaMalloc(&ptr, size);
	*out = (unsigned long long)(uintptr_t)ptr;
	return (int)err;
}

static int batchluCudaFree(unsigned long long ptr) {
	return (int)cudaFree(DEV(ptr));
}

static int batchluCudaMallocHost(void** ptr, unsigned long long size) {
	return (int)cudaMallocHost(ptr, size);
}

static int batchluCudaFreeHost(void* ptr) {
	return (int)cudaFreeHost(ptr);
}

static int batchluCudaMemGetInfo(unsigned long long* free, unsigned long long* total) {
	return (int)cudaMemGetInfo(free, total);
}

static int batchluCublasCreate(cublasHandle_t* out) {
	return (int)cublasCreate_v2(out);
}

static int batchluCublasDestroy(cublasHandle_t handle) {
	return (int)cublasDestroy_v2(handle);
}

static int batchluCublasSetStream(cublasHandle_t handle, cudaStream_t stream) {
	return (int)cublasSetStream_v2(handle, stream);
}

static int batchluSetMatrixAsync(int rows, int cols, int elemSize, const void* src, int lds, unsigned long long dst, int ldd, cudaStream_t stream) {
	return (int)cublasSetMatrixAsync(rows, cols, elemSize, src, lds, DEV(dst), ldd, stream);
}

static int batchluGetMatrixAsync(int rows, int cols, int elemSize, unsigned long long src, int lds, void* dst, int ldd, cudaStream_t stream) {
	return (int)cublasGetMatrixAsync(rows, cols, elemSize, DEV(src), lds, dst, ldd, stream);
}

static int batchluSetVectorAsync(int n, int elemSize, const void* src, unsigned long long dst, cudaStream_t stream) {
	return (int)cublasSetVectorAsync(n, elemSize, src, 1, DEV(dst), 1, stream);
}

static int batchluGetVectorAsync(int n, int elemSize, unsigned long long src, void* dst, cudaStream_t stream) {
	return (int)cublasGetVectorAsync(n, elemSize, DEV(src), 1, dst, 1, stream);
}

static int batchluSgetrfBatched(cublasHandle_t handle, int n, unsigned long long aArray, int lda, unsigned long long pivots, unsigned long long info, int batch) {
	return (int)cublasSgetrfBatched(handle, n, (float* const*)DEV(aArray), lda, (int*)DEV(pivots), (int*)DEV(info), batch);
}

static int batchluSgetrsBatched(cublasHandle_t handle, int n, int nrhs, unsigned long long aArray, int lda, unsigned long long pivots, unsigned long long bArray, int ldb, int* hostInfo, int batch) {
	return (int)cublasSgetrsBatched(handle, 0, n, nrhs, (const float* const*)DEV(aArray), lda, (const int*)DEV(pivots), (float* const*)DEV(bArray), ldb, hostInfo, batch);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Library status codes the cuda backend classifies.
const (
	CudaErrorMemoryAllocation = 2

	CublasStatusAllocFailed     = 3
	CublasStatusInvalidValue    = 7
	CublasStatusMappingError    = 11
	CublasStatusExecutionFailed = 13
)

// Error is a non-zero status returned by the CUDA runtime or cuBLAS.
type Error struct {
	Lib  string
	Code int
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s error %d: %s", e.Lib, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s error %d", e.Lib, e.Code)
}

type Stream struct {
	ptr C.cudaStream_t
}

type BlasHandle struct {
	ptr C.cublasHandle_t
}

type HostBuffer struct {
	ptr unsafe.Pointer
}

func DeviceCount() (int, error) {
	var count C.int
	if err := cudaErr(C.batchluCudaGetDeviceCount(&count)); err != nil {
		return 0, err
	}
	return int(count), nil
}

// DriverVersion returns the CUDA driver version as 1000*major + 10*minor.
func DriverVersion() (int, error) {
	var v C.int
	if err := cudaErr(C.batchluCudaDriverGetVersion(&v)); err != nil {
		return 0, err
	}
	return int(v), nil
}

func NewStream() (Stream, error) {
	var stream C.cudaStream_t
	if err := cudaErr(C.batchluCudaStreamCreate(&stream)); err != nil {
		return Stream{}, err
	}
	return Stream{ptr: stream}, nil
}

func (s Stream) Destroy() error {
	if s.ptr == nil {
		return nil
	}
	return cudaErr(C.batchluCudaStreamDestroy(s.ptr))
}

func (s Stream) Synchronize() error {
	if s.ptr == nil {
		return nil
	}
	return cudaErr(C.batchluCudaStreamSynchronize(s.ptr))
}

func AllocDevice(bytes int64) (uint64, error) {
	if bytes <= 0 {
		return 0, fmt.Errorf("device alloc size must be > 0")
	}
	var ptr C.ulonglong
	if err := cudaErr(C.batchluCudaMalloc(&ptr, C.ulonglong(bytes))); err != nil {
		return 0, err
	}
	return uint64(ptr), nil
}

func FreeDevice(ptr uint64) error {
	if ptr == 0 {
		return nil
	}
	return cudaErr(C.batchluCudaFree(C.ulonglong(ptr)))
}

func AllocHostPinned(bytes int64) (HostBuffer, error) {
	if bytes <= 0 {
		return HostBuffer{}, fmt.Errorf("host alloc size must be > 0")
	}
	var ptr unsafe.Pointer
	if err := cudaErr(C.batchluCudaMallocHost((*unsafe.Pointer)(&ptr), C.ulonglong(bytes))); err != nil {
		return HostBuffer{}, err
	}
	return HostBuffer{ptr: ptr}, nil
}

func (b HostBuffer) Free() error {
	if b.ptr == nil {
		return nil
	}
	return cudaErr(C.batchluCudaFreeHost(b.ptr))
}

func (b HostBuffer) Ptr() unsafe.Pointer {
	return b.ptr
}

// FreeHostPtr releases pinned memory by address.
func FreeHostPtr(ptr unsafe.Pointer) error {
	return HostBuffer{ptr: ptr}.Free()
}

func MemGetInfo() (free, total int64, err error) {
	var f, t C.ulonglong
	if err := cudaErr(C.batchluCudaMemGetInfo(&f, &t)); err != nil {
		return 0, 0, err
	}
	return int64(f), int64(t), nil
}

func NewBlasHandle() (BlasHandle, error) {
	var handle C.cublasHandle_t
	if err := cublasErr(C.batchluCublasCreate(&handle)); err != nil {
		return BlasHandle{}, err
	}
	return BlasHandle{ptr: handle}, nil
}

func (h BlasHandle) SetStream(stream Stream) error {
	return cublasErr(C.batchluCublasSetStream(h.ptr, stream.ptr))
}

func (h BlasHandle) Destroy() error {
	if h.ptr == nil {
		return nil
	}
	return cublasErr(C.batchluCublasDestroy(h.ptr))
}

func SetMatrixAsync(rows, cols, elemSize int, src unsafe.Pointer, lds int, dst uint64, ldd int, stream Stream) error {
	return cublasErr(C.batchluSetMatrixAsync(C.int(rows), C.int(cols), C.int(elemSize), src, C.int(lds), C.ulonglong(dst), C.int(ldd), stream.ptr))
}

func GetMatrixAsync(rows, cols, elemSize int, src uint64, lds int, dst unsafe.Pointer, ldd int, stream Stream) error {
	return cublasErr(C.batchluGetMatrixAsync(C.int(rows), C.int(cols), C.int(elemSize), C.ulonglong(src), C.int(lds), dst, C.int(ldd), stream.ptr))
}

func SetVectorAsync(n, elemSize int, src unsafe.Pointer, dst uint64, stream Stream) error {
	return cublasErr(C.batchluSetVectorAsync(C.int(n), C.int(elemSize), src, C.ulonglong(dst), stream.ptr))
}

func GetVectorAsync(n, elemSize int, src uint64, dst unsafe.Pointer, stream Stream) error {
	return cublasErr(C.batchluGetVectorAsync(C.int(n), C.int(elemSize), C.ulonglong(src), dst, stream.ptr))
}

// SgetrfBatched factors count matrices addressed by the device pointer array
// aArray. Pivots are written contiguously, n per matrix, and info receives
// one status per matrix.
func SgetrfBatched(h BlasHandle, n int, aArray uint64, lda int, pivots, info uint64, count int) error {
	return cublasErr(C.batchluSgetrfBatched(h.ptr, C.int(n), C.ulonglong(aArray), C.int(lda), C.ulonglong(pivots), C.ulonglong(info), C.int(count)))
}

// SgetrsBatched solves with factors from SgetrfBatched. The returned status
// is the host-side argument check of cuBLAS: 0 or -k for the k-th argument.
func SgetrsBatched(h BlasHandle, n, nrhs int, aArray uint64, lda int, pivots, bArray uint64, ldb int, count int) (int, error) {
	var info C.int
	err := cublasErr(C.batchluSgetrsBatched(h.ptr, C.int(n), C.int(nrhs), C.ulonglong(aArray), C.int(lda), C.ulonglong(pivots), C.ulonglong(bArray), C.int(ldb), &info, C.int(count)))
	return int(info), err
}

func cublasErr(code C.int) error {
	if code == 0 {
		return nil
	}
	return &Error{Lib: "cublas", Code: int(code)}
}

func cudaErr(code C.int) error {
	if code == 0 {
		return nil
	}
	msg := C.GoString(C.batchluCudaGetErrorString(C.cudaError_t(code)))
	return &Error{Lib: "cuda runtime", Code: int(code), Msg: msg}
}
