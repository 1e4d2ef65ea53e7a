package logging

import (
	"sync"

	"go.uber.org/zap"
)

// globalLogger backs L(): a process-wide fallback for code that runs
// outside any component.Context-derived child logger, most notably
// package init paths and tests. It starts as a no-op so nothing
// panics before the logging component has booted.
var (
	mu     sync.RWMutex
	global *zap.Logger = zap.NewNop()
)

// SetGlobalLogger replaces the process-wide fallback logger. Called by
// New once the configured logger is built; safe to call again, e.g.
// from a test that wants its own capture logger.
func SetGlobalLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	global = l
	mu.Unlock()
}

// L returns the current process-wide fallback logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}
