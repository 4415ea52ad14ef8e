package batched

import "github.com/samcharles93/batchlu/internal/logger"

// Reporter receives argument validation failures: the routine label and the
// 1-based position of the illegal argument.
type Reporter interface {
	Report(label string, arg int)
}

type ReporterFunc func(label string, arg int)

func (f ReporterFunc) Report(label string, arg int) {
	f(label, arg)
}

// LogReporter writes each report as a warning.
func LogReporter(log logger.Logger) Reporter {
	return ReporterFunc(func(label string, arg int) {
		log.Warn("illegal argument", "routine", label, "arg", arg)
	})
}
