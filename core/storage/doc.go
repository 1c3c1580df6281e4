// Package storage provides the object storage client used for sync
// artifacts: the dashboard snapshot JSON and the rendered report CSV export
// written after each successful sync.
//
// The Client interface wraps the handful of MinIO operations the exporters
// need; the mocks subpackage carries a testify mock of it.
package storage
