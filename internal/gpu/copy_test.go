package gpu

import (
	"errors"
	"testing"
)

func TestMatrixSpan(t *testing.T) {
	tests := []struct {
		rows, cols, ld, elem int
		want                 int64
	}{
		{rows: 0, cols: 4, ld: 32, elem: 4, want: 0},
		{rows: 3, cols: 1, ld: 32, elem: 4, want: 12},
		{rows: 3, cols: 2, ld: 32, elem: 4, want: (32 + 3) * 4},
		{rows: 2, cols: 6, ld: 2, elem: 8, want: 12 * 8},
	}
	for _, tc := range tests {
		if got := MatrixSpan(tc.rows, tc.cols, tc.ld, tc.elem); got != tc.want {
			t.Fatalf("MatrixSpan(%d,%d,%d,%d) = %d, want %d", tc.rows, tc.cols, tc.ld, tc.elem, got, tc.want)
		}
	}
}

func TestCheckMatrixCopy(t *testing.T) {
	if err := CheckMatrixCopy(4, 8, 4, 4, 32); err != nil {
		t.Fatalf("valid copy rejected: %v", err)
	}
	if err := CheckMatrixCopy(0, 0, 4, 1, 1); err != nil {
		t.Fatalf("empty copy rejected: %v", err)
	}
	bad := [][5]int{
		{-1, 1, 4, 1, 1},
		{1, -1, 4, 1, 1},
		{1, 1, 0, 1, 1},
		{4, 1, 4, 3, 4},
		{4, 1, 4, 4, 3},
	}
	for _, c := range bad {
		err := CheckMatrixCopy(c[0], c[1], c[2], c[3], c[4])
		if !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("CheckMatrixCopy(%v) = %v, want ErrInvalidValue", c, err)
		}
	}
}

func TestDevicePtrAdd(t *testing.T) {
	var p DevicePtr = 4096
	if got := p.Add(128); got != 4224 {
		t.Fatalf("Add: got %d", got)
	}
	if !DevicePtr(0).IsNull() || p.IsNull() {
		t.Fatalf("IsNull mismatch")
	}
}
