package report

import (
	"context"
	"errors"
	"fmt"

	"rollcall/feature/troupe/models"

	"go.uber.org/zap"
)

// Synchronizer keeps the external report document converged on the ledger
// state. Updates are incremental: sections that already match are left
// untouched, and dimension changes are applied before cell writes so the
// backend never sees an out-of-bounds write.
type Synchronizer struct {
	backend Backend
	logger  *zap.Logger
}

func NewSynchronizer(backend Backend, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{backend: backend, logger: logger}
}

// Refresh converges the troupe's report on the given ledger state, creating
// the document when none exists or the recorded one is gone. It returns the
// report URI.
func (s *Synchronizer) Refresh(ctx context.Context, tr *models.Troupe, types []*models.EventType, events []*models.Event, members []*models.Member, attendance map[string]map[string]models.AttendanceEntry) (string, error) {
	desired := BuildDocument(tr, types, events, members, attendance)

	if tr.ReportURI != "" {
		err := s.update(ctx, tr.ReportURI, desired)
		if err == nil {
			return tr.ReportURI, nil
		}
		if !errors.Is(err, ErrDocumentGone) {
			return "", err
		}
		s.logger.Warn("report document gone, recreating", zap.String("troupe", tr.ID), zap.String("uri", tr.ReportURI))
	}

	uri, err := s.backend.Create(ctx, desired)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	return uri, nil
}

func (s *Synchronizer) update(ctx context.Context, uri string, desired *Document) error {
	current, err := s.backend.Fetch(ctx, uri)
	if err != nil {
		return err
	}
	for i := 0; i < SectionCount; i++ {
		want := desired.Sections[i]
		have := current.Sections[i]
		if tablesEqual(have, want) {
			continue
		}
		if have == nil || len(have.Rows) != len(want.Rows) || have.Columns() != want.Columns() {
			if err := s.backend.Resize(ctx, uri, i, len(want.Rows), want.Columns()); err != nil {
				return fmt.Errorf("failed to resize report section %d: %w", i, err)
			}
		}
		if err := s.backend.Write(ctx, uri, i, want); err != nil {
			return fmt.Errorf("failed to write report section %d: %w", i, err)
		}
	}
	return nil
}

// Validate compares the stored report against the given ledger state and
// returns the list of diverging sections, empty when the report is faithful.
func (s *Synchronizer) Validate(ctx context.Context, tr *models.Troupe, types []*models.EventType, events []*models.Event, members []*models.Member, attendance map[string]map[string]models.AttendanceEntry) ([]string, error) {
	if tr.ReportURI == "" {
		return []string{"no report document recorded"}, nil
	}
	desired := BuildDocument(tr, types, events, members, attendance)
	current, err := s.backend.Fetch(ctx, tr.ReportURI)
	if errors.Is(err, ErrDocumentGone) {
		return []string{"report document is gone"}, nil
	}
	if err != nil {
		return nil, err
	}
	var diffs []string
	for i := 0; i < SectionCount; i++ {
		if !tablesEqual(current.Sections[i], desired.Sections[i]) {
			diffs = append(diffs, desired.Sections[i].Title)
		}
	}
	return diffs, nil
}

// DeleteReport removes the troupe's report document. A document already gone
// counts as deleted.
func (s *Synchronizer) DeleteReport(ctx context.Context, uri string) error {
	if uri == "" {
		return nil
	}
	err := s.backend.Delete(ctx, uri)
	if errors.Is(err, ErrDocumentGone) {
		return nil
	}
	return err
}

func tablesEqual(a, b *Table) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Rows) != len(b.Rows) || a.Columns() != b.Columns() {
		return false
	}
	if !rowsEqual(a.Header, b.Header) {
		return false
	}
	for i := range a.Rows {
		if !rowsEqual(a.Rows[i], b.Rows[i]) {
			return false
		}
	}
	if len(a.Widths) != len(b.Widths) {
		return false
	}
	for i := range a.Widths {
		if a.Widths[i] != b.Widths[i] {
			return false
		}
	}
	return true
}

func rowsEqual(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
