package manager

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// RunUntilSignal blocks until SIGINT or SIGTERM, then calls Close with a
// bounded context and returns. A second signal during shutdown forces an
// immediate os.Exit(1), and so does a shutdown that outlives timeout.
func (m *Manager) RunUntilSignal(timeout time.Duration) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()

	sig := <-sigCh
	m.logger.Info("received signal, initiating graceful shutdown", zap.Stringer("signal", sig), zap.Duration("timeout", timeout))

	forceExit := make(chan struct{})
	go func() {
		select {
		case <-time.After(timeout):
			m.logger.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case second := <-sigCh:
			if second != nil {
				m.logger.Error("second signal received, forcing exit")
				os.Exit(1)
			}
		case <-forceExit:
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	m.Close(ctx)
	close(forceExit)
}
