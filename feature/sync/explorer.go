package sync

import (
	"context"
	"time"

	"rollcall/core/matcher"
	"rollcall/core/props"
	"rollcall/core/source"
	"rollcall/feature/troupe/models"
)

// Explorer reads one event's source and folds its records into the audience.
// Implementations exist per source kind.
type Explorer interface {
	Kind() source.Kind
	Explore(ctx context.Context, tr *models.Troupe, ev *models.Event, aud *Audience) error
}

// fieldDesc is the kind-neutral shape of one source field as seen this pass.
type fieldDesc struct {
	ID      string
	Label   string
	Widget  source.Widget
	Options []string
}

// resolveFields reconciles an event's field map against the fields the
// source currently exposes. Explicit and pinned mappings survive; mappings
// owed to a matcher are re-resolved each pass so matcher edits take effect.
// Fields that vanished from the source are pruned. A kept mapping whose
// property no longer fits the field's widget is unmapped rather than left to
// produce garbage values.
func resolveFields(tr *models.Troupe, ev *models.Event, fields []fieldDesc) {
	if ev.Fields == nil {
		ev.Fields = models.FieldMap{}
	}
	present := make(map[string]bool, len(fields))
	for _, f := range fields {
		present[f.ID] = true
		m, known := ev.Fields[f.ID]
		keep := known && m.Property != "" && (m.Pinned || m.MatcherPriority == nil)
		if keep {
			if _, exists := tr.Properties[m.Property]; !exists {
				keep = false
			}
		}
		if !keep {
			m = models.FieldMapping{Label: f.Label}
			if idx := matcher.Resolve(tr.Matchers, f.Label); idx >= 0 {
				prio := tr.Matchers[idx].Priority
				m.Property = tr.Matchers[idx].Property
				m.MatcherPriority = &prio
			}
		}
		m.Label = f.Label
		if m.Property != "" {
			tag, exists := tr.Properties[m.Property]
			if !exists || !widgetFits(f, tag.Base) {
				m.Property = ""
				m.MatcherPriority = nil
			}
		}
		ev.Fields[f.ID] = m
	}
	for id := range ev.Fields {
		if !present[id] {
			delete(ev.Fields, id)
		}
	}
}

// widgetFits decides whether a source field can feed a property of the given
// base type. Text is universal, with unparseable rows dropped individually;
// the structured widgets are checked up front.
func widgetFits(f fieldDesc, base props.BaseType) bool {
	switch f.Widget {
	case source.WidgetText:
		return true
	case source.WidgetScale:
		return base == props.TypeNumber || base == props.TypeString
	case source.WidgetDate:
		return base == props.TypeDate || base == props.TypeString
	case source.WidgetChoice:
		switch base {
		case props.TypeString:
			return true
		case props.TypeBoolean:
			// Exactly two options, one reading true and one false, so the
			// choice maps onto the property without ambiguity.
			if len(f.Options) != 2 {
				return false
			}
			seen := map[bool]bool{}
			for _, opt := range f.Options {
				v, ok := props.Parse(opt, props.Tag{Base: props.TypeBoolean})
				if !ok {
					return false
				}
				seen[v.(bool)] = true
			}
			return seen[true] && seen[false]
		case props.TypeNumber:
			for _, opt := range f.Options {
				if _, ok := props.Parse(opt, props.Tag{Base: props.TypeNumber}); !ok {
					return false
				}
			}
			return len(f.Options) > 0
		default:
			return false
		}
	default:
		return false
	}
}

// applyRow validates one record's raw values against the schema and folds
// the result into the audience. Rows without a usable Member ID are ignored;
// individual values that fail to parse are dropped, not the whole row.
func applyRow(tr *models.Troupe, ev *models.Event, aud *Audience, values map[string]string) {
	rec := make(map[string]any)
	for fieldID, raw := range values {
		m, ok := ev.Fields[fieldID]
		if !ok || m.Property == "" {
			continue
		}
		tag, ok := tr.Properties[m.Property]
		if !ok {
			continue
		}
		if raw == "" {
			continue
		}
		v, ok := props.Parse(raw, tag)
		if !ok {
			continue
		}
		rec[m.Property] = v
	}
	key, _ := rec[models.PropMemberID].(string)
	if key == "" {
		return
	}
	aud.Observe(tr, ev, key, rec)
}

// parseSubmitted reads a response timestamp leniently; a zero time means the
// stamp was absent or unreadable.
func parseSubmitted(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	v, ok := props.Parse(raw, props.Tag{Base: props.TypeDate})
	if !ok {
		return time.Time{}
	}
	t, _ := v.(time.Time)
	return t
}
