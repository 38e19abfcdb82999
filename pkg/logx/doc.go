// Package logx wraps zerolog behind a small structured-logging API.
//
// A Logger created from the Service stays live across Apply() calls, so
// runtime config changes (level, sinks) take effect without re-plumbing
// loggers through the app. The zero Logger is a safe no-op.
package logx
