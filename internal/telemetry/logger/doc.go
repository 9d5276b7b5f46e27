// Package logger provides structured logging for gatemesh.
//
// It configures log/slog handlers and carries loggers through contexts:
//
//   - logger.go: handler construction and the runtime-adjustable level
//   - context.go: request-scoped loggers carried in a context
//   - redact.go: sensitive data and payload redaction
package logger
