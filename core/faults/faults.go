package faults

import (
	"errors"
	"fmt"
)

// ClientError is a caller-fixable error: invalid identifiers, structural
// edits attempted while a sync holds the lock, exceeded quota, malformed
// matcher or source configuration. Handlers surface the message verbatim
// with a 4xx status.
type ClientError struct {
	msg string
}

func (e *ClientError) Error() string { return e.msg }

// Client builds a new ClientError with a formatted message.
func Client(format string, args ...any) error {
	return &ClientError{msg: fmt.Sprintf(format, args...)}
}

// IsClient reports whether err is (or wraps) a ClientError.
func IsClient(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// SourceUnavailable marks a per-event external fetch failure (folder listing,
// form or sheet read). It is recovered at the narrowest scope: the affected
// event is skipped or pruned and the sync continues.
type SourceUnavailable struct {
	URI string
	Err error
}

func (e *SourceUnavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.URI, e.Err)
}

func (e *SourceUnavailable) Unwrap() error { return e.Err }

// Unavailable wraps err as a SourceUnavailable for the given source URI.
func Unavailable(uri string, err error) error {
	return &SourceUnavailable{URI: uri, Err: err}
}

// IsUnavailable reports whether err is (or wraps) a SourceUnavailable.
func IsUnavailable(err error) bool {
	var se *SourceUnavailable
	return errors.As(err, &se)
}

// ErrSourceGone marks a source that no longer exists at all (deleted form,
// revoked folder). Providers return it so discovery can prune the event
// rather than merely skip it for the pass.
var ErrSourceGone = errors.New("source no longer exists")

// InvariantViolation is an internal should-not-happen condition: the lock was
// acquired but the troupe vanished, or a bulk write reported partial failure.
// It is fatal to the current sync and must be escalated, never swallowed.
type InvariantViolation struct {
	msg string
}

func (e *InvariantViolation) Error() string { return e.msg }

// Invariant builds a new InvariantViolation with a formatted message.
func Invariant(format string, args ...any) error {
	return &InvariantViolation{msg: fmt.Sprintf(format, args...)}
}

// IsInvariant reports whether err is (or wraps) an InvariantViolation.
func IsInvariant(err error) bool {
	var ie *InvariantViolation
	return errors.As(err, &ie)
}

// ReportSyncFailure is non-fatal to the ledger: the atomic persist already
// committed, only the derived report refresh failed. Logged and surfaced as
// a warning alongside an otherwise successful sync.
type ReportSyncFailure struct {
	Err error
}

func (e *ReportSyncFailure) Error() string {
	return fmt.Sprintf("report sync failed: %v", e.Err)
}

func (e *ReportSyncFailure) Unwrap() error { return e.Err }

// ReportFailure wraps err as a ReportSyncFailure.
func ReportFailure(err error) error {
	return &ReportSyncFailure{Err: err}
}

// IsReportFailure reports whether err is (or wraps) a ReportSyncFailure.
func IsReportFailure(err error) bool {
	var re *ReportSyncFailure
	return errors.As(err, &re)
}
