// Package report keeps an external report document converged on the ledger:
// three fixed sections (event types, events, audience matrix) rendered from
// the stored state and pushed through a pluggable Backend with minimal
// structural changes.
//
// The report is derived data. Losing it, or failing to refresh it after a
// sync, never compromises the ledger; the document can always be rebuilt
// from scratch.
package report
