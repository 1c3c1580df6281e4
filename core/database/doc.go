// Package database manages the GORM connection to the ledger database.
//
// MySQL is the production driver; SQLite is supported for local development
// and tests. The connection carries explicit setup, read and write timeouts,
// pool limits, and a startup ping so failures surface early rather than on
// the first sync.
package database
