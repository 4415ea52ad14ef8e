package gpu

import "fmt"

// MatrixSpan returns the number of bytes touched by a column-major
// rows×cols matrix with leading dimension ld.
func MatrixSpan(rows, cols, ld, elemSize int) int64 {
	if rows == 0 || cols == 0 {
		return 0
	}
	return (int64(cols-1)*int64(ld) + int64(rows)) * int64(elemSize)
}

// CheckMatrixCopy validates the shape of a pitched copy.
func CheckMatrixCopy(rows, cols, elemSize, lds, ldd int) error {
	switch {
	case rows < 0 || cols < 0:
		return fmt.Errorf("%w: matrix copy of %dx%d", ErrInvalidValue, rows, cols)
	case elemSize <= 0:
		return fmt.Errorf("%w: element size %d", ErrInvalidValue, elemSize)
	case lds < max(1, rows):
		return fmt.Errorf("%w: source leading dimension %d < %d", ErrInvalidValue, lds, rows)
	case ldd < max(1, rows):
		return fmt.Errorf("%w: destination leading dimension %d < %d", ErrInvalidValue, ldd, rows)
	}
	return nil
}
