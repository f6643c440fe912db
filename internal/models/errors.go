package models

import (
	"context"
	"errors"
)

// Error taxonomy shared by sources, the catalogue and the scheduler.
// Callers classify with errors.Is; producers wrap with fmt.Errorf("...: %w").
var (
	// ErrUnknownStore is returned when a store slug is not in the current mapping.
	ErrUnknownStore = errors.New("unknown store")

	// ErrNotConfigured is returned when a source lacks a credential or setting.
	ErrNotConfigured = errors.New("source not configured")

	// ErrNetwork wraps transport failures and non-success HTTP statuses.
	ErrNetwork = errors.New("network error")

	// ErrParse wraps payloads that could not be decoded into raw items.
	ErrParse = errors.New("parse error")

	// ErrAlreadyRunning is returned when a job id already has a run in progress.
	ErrAlreadyRunning = errors.New("job already running")

	// ErrNotSupported is returned by sources without a browsable catalogue listing.
	ErrNotSupported = errors.New("operation not supported")

	// ErrJobNotFound is returned for job ids that were never registered.
	ErrJobNotFound = errors.New("job not found")
)

// ErrorKind maps an error to its taxonomy label for outcome reporting.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownStore):
		return "unknown_store"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrAlreadyRunning):
		return "already_running"
	case errors.Is(err, ErrNotSupported):
		return "not_supported"
	default:
		return "internal"
	}
}
