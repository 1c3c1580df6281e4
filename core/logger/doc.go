// Package logger provides the structured logging facility based on Zap.
//
// It builds a configured logger for either environment (console encoding with
// colored levels for development, JSON for production) and a helper that
// binds the per-request ray ID from the Fiber context for request tracing.
package logger
