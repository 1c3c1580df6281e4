// Package troupe implements the organization aggregate and its structural
// edit API: member property definitions, point types, field matchers, event
// types, and the origin-event designation.
//
// Every mutation is gated on the sync lock being free and on the
// structural-edit quota. Operations that change point values propagate
// through events, attendance buckets and member totals inside one database
// transaction so the ledger never observes a partial update.
//
// # Components
//
//   - Store: data access for the ledger collections, including the
//     compare-and-set sync lock and the atomic transaction helper.
//   - Service: business rules for structural edits.
//   - Handler: Fiber routes exposing the edits.
package troupe
