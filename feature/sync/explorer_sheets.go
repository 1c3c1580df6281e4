package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rollcall/core/faults"
	"rollcall/core/source"
	"rollcall/feature/troupe/models"

	"go.uber.org/zap"
)

// SheetExplorer derives member records from a tabular source. The first row
// carries the field labels; every later row is one record. Sheet columns are
// untyped, so each maps as a text field and validation happens per cell.
type SheetExplorer struct {
	sheets source.SheetProvider
	logger *zap.Logger
}

func NewSheetExplorer(sheets source.SheetProvider, logger *zap.Logger) *SheetExplorer {
	return &SheetExplorer{sheets: sheets, logger: logger}
}

func (x *SheetExplorer) Kind() source.Kind { return source.KindSheet }

func (x *SheetExplorer) Explore(ctx context.Context, tr *models.Troupe, ev *models.Event, aud *Audience) error {
	rows, err := x.sheets.Rows(ctx, ev.Source.URI)
	if err != nil {
		if errors.Is(err, faults.ErrSourceGone) {
			return err
		}
		return faults.Unavailable(ev.Source.URI, err)
	}
	if len(rows) == 0 {
		return nil
	}

	header := rows[0]
	fields := make([]fieldDesc, 0, len(header))
	for i, label := range header {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		fields = append(fields, fieldDesc{
			// Field IDs key mappings across syncs; for sheets the column
			// position is the only stable handle we have.
			ID:     fmt.Sprintf("c%d", i),
			Label:  label,
			Widget: source.WidgetText,
		})
	}
	resolveFields(tr, ev, fields)
	ev.ConfirmedSource = &ev.Source

	if !ev.HasMemberID() {
		x.logger.Debug("sheet has no member id column, skipping rows",
			zap.String("event", ev.ID), zap.String("source", ev.Source.URI))
		return nil
	}

	for _, row := range rows[1:] {
		values := make(map[string]string, len(row))
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			values[fmt.Sprintf("c%d", i)] = cell
		}
		applyRow(tr, ev, aud, values)
	}
	return nil
}
