// Package shutdown coordinates graceful process termination.
//
// A Handler waits for SIGINT or SIGTERM, or for its context to end, and
// then runs the registered hooks in reverse registration order under a
// shared timeout. SIGHUP runs the reload hooks instead and keeps waiting.
//
// Usage:
//
//	h := shutdown.NewHandler(10*time.Second, logger)
//	h.OnShutdown("receptionist", srv.Shutdown)
//	h.OnReload(reloadConfig)
//	err := h.Wait(ctx)
package shutdown
