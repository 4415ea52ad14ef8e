package batched

import (
	"context"

	"github.com/samcharles93/batchlu/internal/gpu"
)

const driverLabel = "solveBatched"

// Argument positions of solveBatched, in the conventional getrs order.
const (
	argN     = 1
	argNRHS  = 2
	argA     = 3
	argLDDA  = 4
	argB     = 5
	argLDDB  = 6
	argCount = 9
)

// checkDriver returns 0 or -k for the first illegal argument k.
func checkDriver(args gpu.SolveArgs) int {
	switch {
	case args.N < 0:
		return -argN
	case args.NRHS < 0:
		return -argNRHS
	case args.LDDA < max(1, args.N):
		return -argLDDA
	case args.LDDB < max(1, args.N):
		return -argLDDB
	case args.Count < 0:
		return -argCount
	}
	return 0
}

// solveBatched factors every matrix, then solves with the factors. When any
// matrix fails to factor the solve step is skipped for the whole batch and
// the first per-matrix code is returned. A device failure is returned as an
// error with a zero code.
func solveBatched(ctx context.Context, p gpu.Provider, args gpu.SolveArgs, s gpu.Stream, rep Reporter) (int, error) {
	if code := checkDriver(args); code != 0 {
		rep.Report(driverLabel, -code)
		return code, nil
	}
	if args.N == 0 || args.NRHS == 0 || args.Count == 0 {
		return 0, nil
	}

	code, err := p.Factorize(ctx, args.Factor(), s)
	if err != nil {
		return 0, err
	}
	if code != 0 {
		return code, nil
	}
	return p.SolveFactored(ctx, args, s)
}
