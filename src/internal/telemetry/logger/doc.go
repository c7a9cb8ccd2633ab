// Package logger provides structured logging built on log/slog:
//
//   - logger.go: handler construction, level control, default logger
//   - context.go: context-aware logging with request/trace IDs
//   - redact.go: sensitive data redaction
//
// Features:
//
//   - JSON and text output formats
//   - Log level filtering
//   - Automatic sensitive-key masking
//   - Context propagation for request tracing
package logger
