package manager

import "go.uber.org/zap"

// BootstrapLogger builds the logger the Manager uses for its own
// diagnostics (CPU-limit rejection, pre-boot validation, shutdown
// messages) before any component — including a hosted logging component
// — has booted. Uses zap directly, the same as every other log line in
// this module; the Manager never falls back to the stdlib log package.
// Callers that need a logger before New runs at all, e.g. to report a
// config load failure, use the same constructor.
func BootstrapLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		// zap.NewProduction only fails on a broken encoder config,
		// which never happens with the default config it builds
		// internally; fall back to a no-op logger rather than panic
		// out of a constructor path.
		return zap.NewNop()
	}
	return logger
}
