package cpu

import (
	"fmt"
	"unsafe"

	"github.com/samcharles93/batchlu/internal/gpu"
)

func (b *Backend) SetMatrixAsync(rows, cols, elemSize int, src unsafe.Pointer, lds int, dst gpu.DevicePtr, ldd int, s gpu.Stream) error {
	if err := gpu.CheckMatrixCopy(rows, cols, elemSize, lds, ldd); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}
	if src == nil {
		return fmt.Errorf("%w: set matrix from nil host pointer", gpu.ErrTransfer)
	}
	st, err := b.stream(s)
	if err != nil {
		return err
	}
	dev, err := b.mem.device(uint64(dst), gpu.MatrixSpan(rows, cols, ldd, elemSize))
	if err != nil {
		return fmt.Errorf("%w: set matrix: %w", gpu.ErrTransfer, err)
	}
	host := unsafe.Slice((*byte)(src), gpu.MatrixSpan(rows, cols, lds, elemSize))
	return st.enqueue(func() error {
		copyPitched(dev, ldd*elemSize, host, lds*elemSize, rows*elemSize, cols)
		return nil
	})
}

func (b *Backend) GetMatrixAsync(rows, cols, elemSize int, src gpu.DevicePtr, lds int, dst unsafe.Pointer, ldd int, s gpu.Stream) error {
	if err := gpu.CheckMatrixCopy(rows, cols, elemSize, lds, ldd); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}
	if dst == nil {
		return fmt.Errorf("%w: get matrix into nil host pointer", gpu.ErrTransfer)
	}
	st, err := b.stream(s)
	if err != nil {
		return err
	}
	dev, err := b.mem.device(uint64(src), gpu.MatrixSpan(rows, cols, lds, elemSize))
	if err != nil {
		return fmt.Errorf("%w: get matrix: %w", gpu.ErrTransfer, err)
	}
	host := unsafe.Slice((*byte)(dst), gpu.MatrixSpan(rows, cols, ldd, elemSize))
	return st.enqueue(func() error {
		copyPitched(host, ldd*elemSize, dev, lds*elemSize, rows*elemSize, cols)
		return nil
	})
}

func (b *Backend) SetVectorAsync(n, elemSize int, src unsafe.Pointer, dst gpu.DevicePtr, s gpu.Stream) error {
	return b.SetMatrixAsync(n, 1, elemSize, src, max(n, 1), dst, max(n, 1), s)
}

func (b *Backend) GetVectorAsync(n, elemSize int, src gpu.DevicePtr, dst unsafe.Pointer, s gpu.Stream) error {
	return b.GetMatrixAsync(n, 1, elemSize, src, max(n, 1), dst, max(n, 1), s)
}

// copyPitched copies cols runs of width bytes between buffers whose
// consecutive columns are dpitch and spitch bytes apart.
func copyPitched(dst []byte, dpitch int, src []byte, spitch int, width, cols int) {
	if dpitch == width && spitch == width {
		copy(dst[:width*cols], src[:width*cols])
		return
	}
	for j := range cols {
		copy(dst[j*dpitch:j*dpitch+width], src[j*spitch:j*spitch+width])
	}
}
