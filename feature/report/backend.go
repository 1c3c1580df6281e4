package report

import (
	"context"
	"errors"
)

// Section indexes of a report document. The layout is fixed: three sections,
// always in this order.
const (
	SectionEventTypes = 0
	SectionEvents     = 1
	SectionAudience   = 2
	SectionCount      = 3
)

// ErrDocumentGone marks a report document that no longer exists at the
// backend; the synchronizer recreates it from scratch.
var ErrDocumentGone = errors.New("report document no longer exists")

// Cell is one rendered report cell with its formatting.
type Cell struct {
	Value string `json:"value"`
	Bold  bool   `json:"bold,omitempty"`
}

// Row is one horizontal line of cells.
type Row []Cell

// Table is one section of a report document: a bold header row, data rows,
// and per-column widths.
type Table struct {
	Title  string `json:"title"`
	Header Row    `json:"header"`
	Rows   []Row  `json:"rows"`
	Widths []int  `json:"widths"`
}

// Columns returns the section's column count, taken from the header.
func (t *Table) Columns() int { return len(t.Header) }

// Document is a full report: title plus the three fixed sections.
type Document struct {
	Title    string               `json:"title"`
	Sections [SectionCount]*Table `json:"sections"`
}

// Backend abstracts the external report document store. Structural
// operations (row and column insertion or deletion) are separate from cell
// writes so the synchronizer can keep dimension changes minimal.
type Backend interface {
	// Create materializes a new document and returns its URI.
	Create(ctx context.Context, doc *Document) (string, error)
	// Fetch loads the current state of a document. A missing document
	// yields ErrDocumentGone.
	Fetch(ctx context.Context, uri string) (*Document, error)
	// Resize grows or shrinks one section to the given dimensions,
	// inserting or deleting trailing rows and columns.
	Resize(ctx context.Context, uri string, section, rows, cols int) error
	// Write overwrites one section's header, data rows and widths. The
	// section must already have the matching dimensions.
	Write(ctx context.Context, uri string, section int, t *Table) error
	// Delete removes the document.
	Delete(ctx context.Context, uri string) error
}
