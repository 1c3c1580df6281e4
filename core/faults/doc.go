// Package faults defines the typed error kinds shared across features.
//
// Four kinds exist, each with a constructor and an Is* helper built on
// errors.As:
//
//   - ClientError: caller-fixable, surfaced verbatim as 4xx.
//   - SourceUnavailable: per-event external fetch failure, recovered locally.
//   - InvariantViolation: internal corruption, fatal to the current sync, 5xx.
//   - ReportSyncFailure: non-fatal warning after a committed sync.
//
// Validation and business-rule errors stop the whole request before any
// write; per-source errors are caught at the scope of one event or one
// response row so a single bad external record cannot sink a sync.
package faults
