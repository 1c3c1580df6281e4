// Package sync implements the membership sync pass: event discovery across
// declared folder trees, per-source exploration into typed member records,
// audience reconciliation, and the atomic persist of the rebuilt ledger.
//
// A pass is serialized per troupe by a compare-and-set lock and builds its
// entire outcome speculatively in memory. Only the final persist phase
// writes, inside one transaction, so any earlier failure leaves the stored
// ledger exactly as it was. External source failures are recovered at the
// narrowest scope: a folder that fails to list costs its subtree, a source
// that fails to read costs one event's pass, and a source that is gone for
// good retires its event. The derived report refresh runs after the commit
// and can only degrade the pass to a success-with-warning.
//
// # Components
//
//   - Discovery: folder-tree walk attributing each form or sheet to exactly
//     one event type.
//   - FormExplorer, SheetExplorer: per-kind record derivation.
//   - Audience: the locked accumulator explorer passes fold into.
//   - Orchestrator: the pass driver, from lock to unlock.
package sync
