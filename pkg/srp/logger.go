package srp

import "sync/atomic"

// Logger receives non-fatal diagnostics from the package. *logging.Logger
// from this module satisfies it.
type Logger interface {
	Warn(msg string, fields ...map[string]any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...map[string]any) {}

type loggerHolder struct {
	Logger
}

var pkgLogger atomic.Value

func init() {
	pkgLogger.Store(loggerHolder{nopLogger{}})
}

// SetLogger installs l as the package diagnostic logger. A nil l discards
// diagnostics. Safe for concurrent use.
func SetLogger(l Logger) {
	if l == nil {
		l = nopLogger{}
	}
	pkgLogger.Store(loggerHolder{l})
}

func logger() Logger {
	return pkgLogger.Load().(loggerHolder).Logger
}
