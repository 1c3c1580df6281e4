package sync

import (
	"context"
	"errors"
	"strings"

	"rollcall/core/faults"
	"rollcall/core/source"
	"rollcall/feature/troupe/models"

	"go.uber.org/zap"
)

// FormExplorer derives member records from a form's questions and responses.
type FormExplorer struct {
	forms  source.FormProvider
	logger *zap.Logger
}

func NewFormExplorer(forms source.FormProvider, logger *zap.Logger) *FormExplorer {
	return &FormExplorer{forms: forms, logger: logger}
}

func (x *FormExplorer) Kind() source.Kind { return source.KindForm }

// Explore resolves the form's questions against the troupe's schema and
// folds every response into the audience. A gone source surfaces as
// faults.ErrSourceGone so the caller can retire the event; any other source
// failure is reported as unavailable and costs only this event's pass.
func (x *FormExplorer) Explore(ctx context.Context, tr *models.Troupe, ev *models.Event, aud *Audience) error {
	questions, err := x.forms.Questions(ctx, ev.Source.URI)
	if err != nil {
		if errors.Is(err, faults.ErrSourceGone) {
			return err
		}
		return faults.Unavailable(ev.Source.URI, err)
	}

	fields := make([]fieldDesc, 0, len(questions))
	for _, q := range questions {
		fields = append(fields, fieldDesc{
			ID:      q.FieldID,
			Label:   q.Label,
			Widget:  q.Widget,
			Options: q.Options,
		})
	}
	resolveFields(tr, ev, fields)
	ev.ConfirmedSource = &ev.Source

	if !ev.HasMemberID() {
		x.logger.Debug("form has no member id field, skipping responses",
			zap.String("event", ev.ID), zap.String("source", ev.Source.URI))
		return nil
	}

	responses, err := x.forms.Responses(ctx, ev.Source.URI)
	if err != nil {
		if errors.Is(err, faults.ErrSourceGone) {
			return err
		}
		return faults.Unavailable(ev.Source.URI, err)
	}
	if len(responses) == 0 {
		return nil
	}

	for _, resp := range responses {
		touchStart(ev, parseSubmitted(resp.Submitted))
	}

	for _, resp := range responses {
		values := make(map[string]string, len(resp.Answers))
		for fieldID, answers := range resp.Answers {
			values[fieldID] = strings.Join(answers, ", ")
		}
		applyRow(tr, ev, aud, values)
	}
	return nil
}
