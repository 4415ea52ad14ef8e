// Package verify measures how well a computed solution satisfies A·X = B.
package verify

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Dense returns the n×cols column-major float32 block as a gonum matrix.
func Dense(data []float32, n, cols int) *mat.Dense {
	m := mat.NewDense(n, cols, nil)
	for j := range cols {
		for i := range n {
			m.Set(i, j, float64(data[j*n+i]))
		}
	}
	return m
}

// Residual returns ‖A·X − B‖_F / (‖A‖_F·‖X‖_F + ‖B‖_F) for one system
// stored column-major with leading dimension n. A zero denominator yields
// the absolute residual.
func Residual(n, nrhs int, a, x, b []float32) (float64, error) {
	switch {
	case len(a) != n*n:
		return 0, fmt.Errorf("matrix has %d elements, want %d", len(a), n*n)
	case len(x) != n*nrhs || len(b) != n*nrhs:
		return 0, fmt.Errorf("solution or rhs size mismatch: %d, %d, want %d", len(x), len(b), n*nrhs)
	}
	if n == 0 || nrhs == 0 {
		return 0, nil
	}

	A, X, B := Dense(a, n, n), Dense(x, n, nrhs), Dense(b, n, nrhs)
	var r mat.Dense
	r.Mul(A, X)
	r.Sub(&r, B)

	num := mat.Norm(&r, 2)
	den := mat.Norm(A, 2)*mat.Norm(X, 2) + mat.Norm(B, 2)
	if den == 0 {
		return num, nil
	}
	return num / den, nil
}

// Batch returns the relative residual of every system of a batch and the
// largest of them.
func Batch(n, nrhs int, a []float32, x, b [][]float32) ([]float64, float64, error) {
	if len(x) != len(b) || len(a) != n*n*len(b) {
		return nil, 0, fmt.Errorf("batch shape mismatch: %d solutions, %d rhs, %d matrix elements", len(x), len(b), len(a))
	}
	out := make([]float64, len(b))
	worst := 0.0
	for i := range b {
		r, err := Residual(n, nrhs, a[i*n*n:(i+1)*n*n], x[i], b[i])
		if err != nil {
			return nil, 0, fmt.Errorf("system %d: %w", i, err)
		}
		out[i] = r
		worst = math.Max(worst, r)
	}
	return out, worst, nil
}
