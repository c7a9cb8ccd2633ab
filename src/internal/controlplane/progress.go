package controlplane

import (
	"context"
	"log/slog"
	"time"
)

// ProgressGuard wraps a suspension point (an external RPC, or a timed
// sleep) so that a slow external dependency never looks, from the
// perspective of whatever is watching the controller's liveness, like the
// controller itself has hung: it emits a heartbeat at a fixed interval for
// as long as the guarded function is still outstanding.
type ProgressGuard struct {
	interval time.Duration
	logger   *slog.Logger
}

// NewProgressGuard creates a guard that heartbeats every interval.
func NewProgressGuard(interval time.Duration, logger *slog.Logger) *ProgressGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressGuard{interval: interval, logger: logger}
}

// Protect runs fn to completion, or until ctx is done, whichever comes
// first, logging a debug heartbeat every interval while fn is still
// running. fn is expected to itself respect ctx's deadline; Protect does
// not forcibly abandon fn's goroutine on ctx expiry, it only stops waiting
// for it.
func (g *ProgressGuard) Protect(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.logger.Debug("progress guard: suspension point still outstanding")
		}
	}
}
