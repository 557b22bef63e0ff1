package passes

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the package logger. It is a no-op logger until SetLogger
// installs a real one.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs the logger used by the passes.
func SetLogger(l *zap.Logger) {
	logger = l
}
