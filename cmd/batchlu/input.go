package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/batchlu/internal/batched"
)

// inputFile is the on-disk batch format. Each matrix is given as rows and
// each right-hand side block as a list of columns, so a single right-hand
// side reads b: [[b1, b2, ...]].
type inputFile struct {
	N       int           `yaml:"n" json:"n"`
	Systems []inputSystem `yaml:"systems" json:"systems"`
}

type inputSystem struct {
	A [][]float32 `yaml:"a" json:"a"`
	B [][]float32 `yaml:"b" json:"b"`
}

func readBatch(path string) (batched.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return batched.Batch{}, fmt.Errorf("read input: %w", err)
	}
	return parseBatch(data, formatOf(path, data))
}

// formatOf picks json or yaml from the extension, then from the content.
func formatOf(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	if t := bytes.TrimSpace(data); len(t) > 0 && t[0] == '{' {
		return "json"
	}
	return "yaml"
}

func parseBatch(data []byte, format string) (batched.Batch, error) {
	var in inputFile
	var err error
	switch format {
	case "json":
		err = json.Unmarshal(data, &in)
	case "yaml":
		err = yaml.Unmarshal(data, &in)
	default:
		return batched.Batch{}, fmt.Errorf("unknown input format %q", format)
	}
	if err != nil {
		return batched.Batch{}, fmt.Errorf("parse %s input: %w", format, err)
	}
	return in.batch()
}

// batch converts the row/column form into the column-major batch layout.
func (in inputFile) batch() (batched.Batch, error) {
	n := in.N
	if n == 0 && len(in.Systems) > 0 {
		n = len(in.Systems[0].A)
	}
	if n < 0 {
		return batched.Batch{}, fmt.Errorf("n must be >= 0, got %d", n)
	}
	nrhs := 1
	if len(in.Systems) > 0 {
		nrhs = len(in.Systems[0].B)
	}

	out := batched.Batch{
		N:     n,
		NRHS:  nrhs,
		Count: len(in.Systems),
		A:     make([]float32, n*n*len(in.Systems)),
		B:     make([][]float32, len(in.Systems)),
	}
	for k, sys := range in.Systems {
		if len(sys.A) != n {
			return batched.Batch{}, fmt.Errorf("system %d: matrix has %d rows, want %d", k, len(sys.A), n)
		}
		a := out.A[k*n*n : (k+1)*n*n]
		for i, row := range sys.A {
			if len(row) != n {
				return batched.Batch{}, fmt.Errorf("system %d: row %d has %d entries, want %d", k, i, len(row), n)
			}
			for j, v := range row {
				a[j*n+i] = v
			}
		}

		if len(sys.B) != nrhs {
			return batched.Batch{}, fmt.Errorf("system %d: %d right-hand sides, want %d", k, len(sys.B), nrhs)
		}
		b := make([]float32, 0, n*nrhs)
		for j, col := range sys.B {
			if len(col) != n {
				return batched.Batch{}, fmt.Errorf("system %d: right-hand side %d has %d entries, want %d", k, j, len(col), n)
			}
			b = append(b, col...)
		}
		out.B[k] = b
	}
	return out, nil
}

// columns splits a column-major n×cols block into its columns.
func columns(block []float32, n int) [][]float32 {
	if n == 0 {
		return [][]float32{}
	}
	cols := make([][]float32, len(block)/n)
	for j := range cols {
		cols[j] = block[j*n : (j+1)*n]
	}
	return cols
}
