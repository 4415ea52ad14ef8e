package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/batchlu/internal/batched"
	"github.com/samcharles93/batchlu/internal/gpu"
	"github.com/samcharles93/batchlu/internal/logger"
	"github.com/samcharles93/batchlu/internal/verify"
)

type peakReporter interface {
	PeakMemory() int64
}

func benchCmd() *cli.Command {
	var (
		n          int64
		nrhs       int64
		count      int64
		warmupRuns int64
		benchRuns  int64
		seed       uint64
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Solve random well-conditioned batches repeatedly and report timings",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "n", Usage: "matrix order", Value: 32, Destination: &n},
			&cli.Int64Flag{Name: "nrhs", Usage: "right-hand sides per matrix", Value: 1, Destination: &nrhs},
			&cli.Int64Flag{Name: "count", Usage: "matrices per batch", Value: 1000, Destination: &count},
			&cli.Int64Flag{Name: "warmup", Usage: "number of warmup runs", Value: 1, Destination: &warmupRuns},
			&cli.Int64Flag{Name: "runs", Usage: "number of benchmark runs", Value: 5, Destination: &benchRuns},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed", Value: 42, Destination: &seed},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			if n <= 0 || nrhs <= 0 || count <= 0 || benchRuns <= 0 {
				return cli.Exit("error: n, nrhs, count and runs must be positive", 1)
			}

			solver, err := openSolver(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open backend: %v", err), 1)
			}
			dev := solver.Backend()
			batch := randomBatch(seed, int(n), int(nrhs), int(count))

			before, err := dev.MemInfo()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: device memory: %v", err), 1)
			}

			fmt.Println("=== batchlu benchmark ===")
			fmt.Printf("Backend:    %s\n", dev.Name())
			fmt.Printf("Streams:    %s\n", streamMode())
			fmt.Printf("CPUs:       %d\n", runtime.NumCPU())
			fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
			fmt.Printf("Batch:      %d x (%d x %d), nrhs %d\n", count, n, n, nrhs)
			fmt.Printf("Warmup:     %d runs\n", warmupRuns)
			fmt.Printf("Runs:       %d\n", benchRuns)
			fmt.Println()

			for i := range int(warmupRuns) {
				log.Info("warmup run", "run", i+1)
				if _, err := solver.Solve(ctx, batch); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup run %d: %v", i+1, err), 1)
				}
			}

			durations := make([]time.Duration, 0, benchRuns)
			var last *batched.Solution
			for i := range int(benchRuns) {
				log.Info("benchmark run", "run", i+1)
				start := time.Now()
				sol, err := solver.Solve(ctx, batch)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: benchmark run %d: %v", i+1, err), 1)
				}
				d := time.Since(start)
				durations = append(durations, d)
				last = sol
				fmt.Printf("Run %d: %s (%.0f systems/s)\n", i+1, d.Round(time.Microsecond), float64(count)/d.Seconds())
			}

			after, err := dev.MemInfo()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: device memory: %v", err), 1)
			}
			_, worst, err := verify.Batch(batch.N, batch.NRHS, batch.A, last.X, batch.B)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: residual: %v", err), 1)
			}

			slices.Sort(durations)
			var total time.Duration
			for _, d := range durations {
				total += d
			}
			fmt.Println()
			fmt.Println("=== Results ===")
			fmt.Printf("Min:          %s\n", durations[0].Round(time.Microsecond))
			fmt.Printf("Median:       %s\n", durations[len(durations)/2].Round(time.Microsecond))
			fmt.Printf("Mean:         %s\n", (total / time.Duration(len(durations))).Round(time.Microsecond))
			fmt.Printf("Max residual: %.3g\n", worst)
			printMemory("Before", before)
			printMemory("After", after)
			if p, ok := dev.(peakReporter); ok {
				fmt.Printf("Peak device:  %s\n", formatBytes(p.PeakMemory()))
			}
			if after.Used != before.Used || after.Allocations != before.Allocations {
				log.Warn("device memory changed across runs", "before", before.Used, "after", after.Used)
			}
			return nil
		},
	}
}

func streamMode() string {
	if serialStreams {
		return "serial"
	}
	return "concurrent"
}

func printMemory(label string, info gpu.MemInfo) {
	fmt.Printf("%-13s %s used, %d device / %d host allocations\n",
		label+":", formatBytes(info.Used), info.Allocations, info.HostAllocations)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for v := b / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

// randomBatch builds count diagonally dominant systems.
func randomBatch(seed uint64, n, nrhs, count int) batched.Batch {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	a := make([]float32, n*n*count)
	for k := range count {
		m := a[k*n*n : (k+1)*n*n]
		for i := range m {
			m[i] = rng.Float32()*2 - 1
		}
		for i := range n {
			m[i*n+i] += float32(n)
		}
	}
	b := make([][]float32, count)
	for k := range b {
		b[k] = make([]float32, n*nrhs)
		for i := range b[k] {
			b[k][i] = rng.Float32()*2 - 1
		}
	}
	return batched.Batch{N: n, NRHS: nrhs, Count: count, A: a, B: b}
}
