// Package source declares the narrow read contracts to the external data
// providers: a folder-like hierarchical store, a form-like question/response
// provider, and a sheet-like tabular provider.
//
// The concrete clients live outside this repository; the sync engine depends
// only on these interfaces. The sourcetest subpackage ships stateful
// in-memory fakes, and the local subpackage a filesystem-backed provider set
// for development and the one-shot CLI.
package source
