package gpu

// Argument positions reported by providers follow the field order of
// FactorArgs and SolveArgs.
const (
	factorArgN     = 1
	factorArgLDDA  = 3
	factorArgCount = 7

	solveArgN     = 1
	solveArgNRHS  = 2
	solveArgLDDA  = 4
	solveArgLDDB  = 8
	solveArgCount = 10
)

// Check returns 0 when the factorization arguments are legal, or -k for
// the first illegal argument k.
func (a FactorArgs) Check() int {
	switch {
	case a.N < 0:
		return -factorArgN
	case a.LDDA < max(1, a.N):
		return -factorArgLDDA
	case a.Count < 0:
		return -factorArgCount
	}
	return 0
}

// Empty reports whether the factorization has no work.
func (a FactorArgs) Empty() bool {
	return a.N == 0 || a.Count == 0
}

func (a SolveArgs) Check() int {
	switch {
	case a.N < 0:
		return -solveArgN
	case a.NRHS < 0:
		return -solveArgNRHS
	case a.LDDA < max(1, a.N):
		return -solveArgLDDA
	case a.LDDB < max(1, a.N):
		return -solveArgLDDB
	case a.Count < 0:
		return -solveArgCount
	}
	return 0
}

func (a SolveArgs) Empty() bool {
	return a.N == 0 || a.NRHS == 0 || a.Count == 0
}
