// Package shutdown provides graceful shutdown handling.
//
// This package handles process termination signals:
//
//   - Signal handling (SIGINT, SIGTERM)
//   - A timeout-bounded context passed to every hook (a hook that ignores
//     it is not interrupted)
//   - Cleanup callback registration
//   - Shutdown coordination
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return srv.Close() })
//	err := h.Wait() // blocks until SIGINT/SIGTERM, then runs hooks in reverse order
//
package shutdown
