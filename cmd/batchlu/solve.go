package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/batchlu/internal/batched"
	"github.com/samcharles93/batchlu/internal/logger"
	"github.com/samcharles93/batchlu/internal/verify"
)

type solveReport struct {
	Backend     string         `json:"backend"`
	N           int            `json:"n"`
	NRHS        int            `json:"nrhs"`
	Count       int            `json:"count"`
	Status      int            `json:"status"`
	Index       *int           `json:"index,omitempty"`
	Error       string         `json:"error,omitempty"`
	Info        []int32        `json:"info,omitempty"`
	Solutions   [][][]float32  `json:"solutions,omitempty"`
	Residuals   []float64      `json:"residuals,omitempty"`
	MaxResidual float64        `json:"max_residual"`
	Duration    jsonDurationMS `json:"duration_ms"`
}

type jsonDurationMS time.Duration

func (d jsonDurationMS) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(time.Duration(d).Microseconds()) / 1e3)
}

func solveCmd() *cli.Command {
	var (
		input  string
		output string
	)

	return &cli.Command{
		Name:  "solve",
		Usage: "Solve a batch read from a YAML or JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "batch file (.yaml, .yml or .json)",
				Required:    true,
				Destination: &input,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "write the JSON report here instead of stdout",
				Destination: &output,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			batch, err := readBatch(input)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			solver, err := openSolver(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open backend: %v", err), 1)
			}
			log.Info("solving batch", "input", input, "n", batch.N, "nrhs", batch.NRHS, "count", batch.Count, "backend", solver.Backend().Name())

			start := time.Now()
			sol, solveErr := solver.Solve(ctx, batch)
			report := buildReport(solver.Backend().Name(), batch, sol, solveErr, time.Since(start))

			w := io.Writer(os.Stdout)
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: create output: %v", err), 1)
				}
				defer f.Close()
				w = f
			}
			if err := writeReport(w, report); err != nil {
				return cli.Exit(fmt.Sprintf("error: write report: %v", err), 1)
			}
			if solveErr != nil {
				return cli.Exit(fmt.Sprintf("error: %v", solveErr), 2)
			}
			return nil
		},
	}
}

func buildReport(backend string, batch batched.Batch, sol *batched.Solution, err error, took time.Duration) solveReport {
	r := solveReport{
		Backend:  backend,
		N:        batch.N,
		NRHS:     batch.NRHS,
		Count:    batch.Count,
		Status:   batched.Code(err),
		Duration: jsonDurationMS(took),
	}
	if sol != nil {
		r.Info = sol.Info
	}
	if err != nil {
		r.Error = err.Error()
		var se *batched.StatusError
		if errors.As(err, &se) && se.Index >= 0 {
			idx := se.Index
			r.Index = &idx
		}
		return r
	}

	r.Solutions = make([][][]float32, len(sol.X))
	for i, x := range sol.X {
		r.Solutions[i] = columns(x, batch.N)
	}
	if res, worst, verr := verify.Batch(batch.N, batch.NRHS, batch.A, sol.X, batch.B); verr == nil {
		r.Residuals, r.MaxResidual = res, worst
	}
	return r
}

func writeReport(w io.Writer, r solveReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
