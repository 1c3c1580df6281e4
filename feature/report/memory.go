package report

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend keeps report documents in memory. It backs the one-process
// deployment mode and the test suite; Ops records every structural call so
// callers can assert the synchronizer touched no more than it had to.
type MemoryBackend struct {
	mu   sync.Mutex
	docs map[string]*Document
	// Ops is the ordered trace of backend calls since the last ResetOps.
	Ops []string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]*Document)}
}

func (b *MemoryBackend) Create(ctx context.Context, doc *Document) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	uri := "memory://" + uuid.NewString()
	b.docs[uri] = cloneDocument(doc)
	b.Ops = append(b.Ops, "create")
	return uri, nil
}

func (b *MemoryBackend) Fetch(ctx context.Context, uri string) (*Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.docs[uri]
	if !ok {
		return nil, ErrDocumentGone
	}
	return cloneDocument(doc), nil
}

func (b *MemoryBackend) Resize(ctx context.Context, uri string, section, rows, cols int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.docs[uri]
	if !ok {
		return ErrDocumentGone
	}
	if section < 0 || section >= SectionCount {
		return fmt.Errorf("section %d out of range", section)
	}
	t := doc.Sections[section]
	if t == nil {
		t = &Table{}
		doc.Sections[section] = t
	}

	for len(t.Rows) > rows {
		t.Rows = t.Rows[:len(t.Rows)-1]
	}
	for len(t.Rows) < rows {
		t.Rows = append(t.Rows, make(Row, cols))
	}
	resizeRow := func(r Row) Row {
		for len(r) > cols {
			r = r[:len(r)-1]
		}
		for len(r) < cols {
			r = append(r, Cell{})
		}
		return r
	}
	t.Header = resizeRow(t.Header)
	for i := range t.Rows {
		t.Rows[i] = resizeRow(t.Rows[i])
	}
	for len(t.Widths) > cols {
		t.Widths = t.Widths[:len(t.Widths)-1]
	}
	for len(t.Widths) < cols {
		t.Widths = append(t.Widths, 0)
	}

	b.Ops = append(b.Ops, fmt.Sprintf("resize:%d:%dx%d", section, rows, cols))
	return nil
}

func (b *MemoryBackend) Write(ctx context.Context, uri string, section int, t *Table) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.docs[uri]
	if !ok {
		return ErrDocumentGone
	}
	if section < 0 || section >= SectionCount {
		return fmt.Errorf("section %d out of range", section)
	}
	cur := doc.Sections[section]
	if cur != nil && (len(cur.Rows) != len(t.Rows) || cur.Columns() != t.Columns()) {
		return fmt.Errorf("section %d dimension mismatch: have %dx%d, writing %dx%d",
			section, len(cur.Rows), cur.Columns(), len(t.Rows), t.Columns())
	}
	doc.Sections[section] = cloneTable(t)
	b.Ops = append(b.Ops, fmt.Sprintf("write:%d", section))
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, uri string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.docs[uri]; !ok {
		return ErrDocumentGone
	}
	delete(b.docs, uri)
	b.Ops = append(b.Ops, "delete")
	return nil
}

// ResetOps clears the recorded call trace.
func (b *MemoryBackend) ResetOps() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Ops = nil
}

func cloneDocument(doc *Document) *Document {
	out := &Document{Title: doc.Title}
	for i, t := range doc.Sections {
		if t != nil {
			out.Sections[i] = cloneTable(t)
		}
	}
	return out
}

func cloneTable(t *Table) *Table {
	out := &Table{
		Title:  t.Title,
		Header: append(Row(nil), t.Header...),
		Widths: append([]int(nil), t.Widths...),
	}
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append(Row(nil), r...)
	}
	return out
}
