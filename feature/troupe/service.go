package troupe

import (
	"context"
	"fmt"

	"rollcall/core/faults"
	"rollcall/core/matcher"
	"rollcall/core/props"
	"rollcall/feature/troupe/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service implements the structural edit operations on a troupe's
// configuration. Every mutation is gated on the sync lock being free and,
// once validated, consumes one structural-edit slot in the same transaction
// as the write.
type Service struct {
	store  *Store
	logger *zap.Logger
}

// NewService creates a new troupe service.
func NewService(store *Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Store exposes the underlying data access capability for sibling features.
func (s *Service) Store() *Store {
	return s.store
}

// guard loads the troupe and rejects edits while a sync holds the lock.
func (s *Service) guard(ctx context.Context, troupeID string) (*models.Troupe, error) {
	t, err := s.store.GetTroupe(ctx, troupeID)
	if err != nil {
		return nil, err
	}
	if t.SyncLock {
		return nil, faults.Client("troupe %s is locked by a running sync", troupeID)
	}
	return t, nil
}

// commit consumes one structural-edit slot and applies the mutation in the
// same transaction. Callers validate first, so a rejected edit never touches
// the quota, and a failed write rolls the decrement back.
func (s *Service) commit(ctx context.Context, troupeID string, fn func(tx *Store) error) error {
	return s.store.Transaction(ctx, func(tx *Store) error {
		ok, err := tx.TryConsumeLimit(ctx, troupeID, "structural_edits", 1)
		if err != nil {
			return err
		}
		if !ok {
			return faults.Client("structural edit limit exceeded for troupe %s", troupeID)
		}
		return fn(tx)
	})
}

// CreateTroupe creates a new troupe with the baseline schema.
func (s *Service) CreateTroupe(ctx context.Context, name string) (*models.Troupe, error) {
	t, err := s.store.CreateTroupe(ctx, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Troupe created", zap.String("troupe_id", t.ID), zap.String("name", name))
	return t, nil
}

// AddProperty adds a member property definition. New properties are always
// optional: a property may only become required once at least one event maps
// a field to it.
func (s *Service) AddProperty(ctx context.Context, troupeID, name string, tag props.Tag) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	if name == "" {
		return faults.Client("property name must not be empty")
	}
	if !tag.Valid() {
		return faults.Client("unknown property type %q", tag.Base)
	}
	if _, exists := t.Properties[name]; exists {
		return faults.Client("property %q already exists", name)
	}
	if len(t.Properties) >= models.MaxProperties {
		return faults.Client("property limit of %d reached", models.MaxProperties)
	}
	tag.Required = false
	t.Properties[name] = tag
	return s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveTroupe(ctx, t) })
}

// RemoveProperty removes a property definition and unmaps every event field
// that pointed at it. Baseline properties can never be removed.
func (s *Service) RemoveProperty(ctx context.Context, troupeID, name string) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	if models.IsBaselineProperty(name) {
		return faults.Client("property %q is part of the baseline set and cannot be removed", name)
	}
	if _, exists := t.Properties[name]; !exists {
		return faults.Client("property %q does not exist", name)
	}
	delete(t.Properties, name)

	events, err := s.store.ListEvents(ctx, troupeID)
	if err != nil {
		return err
	}
	return s.commit(ctx, troupeID, func(tx *Store) error {
		for _, e := range events {
			changed := false
			for fieldID, m := range e.Fields {
				if m.Property == name {
					m.Property = ""
					m.MatcherPriority = nil
					m.Pinned = false
					e.Fields[fieldID] = m
					changed = true
				}
			}
			if changed {
				if err := tx.SaveEvents(ctx, []*models.Event{e}); err != nil {
					return err
				}
			}
		}
		return tx.SaveTroupe(ctx, t)
	})
}

// SetPropertyRequired toggles a property's required flag. Requiring a
// property demands that at least one event currently maps a field to it.
func (s *Service) SetPropertyRequired(ctx context.Context, troupeID, name string, required bool) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	tag, exists := t.Properties[name]
	if !exists {
		return faults.Client("property %q does not exist", name)
	}
	if models.IsBaselineProperty(name) && !required && tag.Required {
		return faults.Client("property %q is part of the baseline set and cannot be relaxed", name)
	}
	if required && !tag.Required {
		events, err := s.store.ListEvents(ctx, troupeID)
		if err != nil {
			return err
		}
		mapped := false
		for _, e := range events {
			for _, m := range e.Fields {
				if m.Property == name {
					mapped = true
					break
				}
			}
		}
		if !mapped {
			return faults.Client("property %q cannot be required: no event maps a field to it", name)
		}
	}
	tag.Required = required
	t.Properties[name] = tag
	return s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveTroupe(ctx, t) })
}

// RetypeProperty changes a property's base type. Baseline properties keep
// their type forever.
func (s *Service) RetypeProperty(ctx context.Context, troupeID, name string, base props.BaseType) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	if models.IsBaselineProperty(name) {
		return faults.Client("property %q is part of the baseline set and cannot be retyped", name)
	}
	tag, exists := t.Properties[name]
	if !exists {
		return faults.Client("property %q does not exist", name)
	}
	tag.Base = base
	if !tag.Valid() {
		return faults.Client("unknown property type %q", base)
	}
	t.Properties[name] = tag
	return s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveTroupe(ctx, t) })
}

// AddPointType adds a time-boxed point category.
func (s *Service) AddPointType(ctx context.Context, troupeID, name string, window models.PointWindow) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	if name == "" {
		return faults.Client("point type name must not be empty")
	}
	if _, exists := t.PointTypes[name]; exists {
		return faults.Client("point type %q already exists", name)
	}
	if len(t.PointTypes) >= models.MaxPointTypes {
		return faults.Client("point type limit of %d reached", models.MaxPointTypes)
	}
	t.PointTypes[name] = window
	return s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveTroupe(ctx, t) })
}

// UpdatePointWindow moves a point type's window. The baseline Total window
// is immutable.
func (s *Service) UpdatePointWindow(ctx context.Context, troupeID, name string, window models.PointWindow) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	if name == models.PointTotal {
		return faults.Client("the %q point type cannot be modified", models.PointTotal)
	}
	if _, exists := t.PointTypes[name]; !exists {
		return faults.Client("point type %q does not exist", name)
	}
	t.PointTypes[name] = window
	return s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveTroupe(ctx, t) })
}

// RemovePointType removes a point category. The baseline Total can never be
// removed; accumulated member totals are rebuilt by the next sync.
func (s *Service) RemovePointType(ctx context.Context, troupeID, name string) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	if name == models.PointTotal {
		return faults.Client("the %q point type cannot be removed", models.PointTotal)
	}
	if _, exists := t.PointTypes[name]; !exists {
		return faults.Client("point type %q does not exist", name)
	}
	delete(t.PointTypes, name)
	return s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveTroupe(ctx, t) })
}

// AddMatcher appends a field matcher after validating the resulting list.
func (s *Service) AddMatcher(ctx context.Context, troupeID string, m matcher.Matcher) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	if len(t.Matchers) >= models.MaxMatchers {
		return faults.Client("matcher limit of %d reached", models.MaxMatchers)
	}
	if _, mapped := t.Properties[m.Property]; !mapped {
		return faults.Client("matcher targets unknown property %q", m.Property)
	}
	next := append(append([]matcher.Matcher{}, t.Matchers...), m)
	if err := matcher.Validate(next); err != nil {
		return err
	}
	t.Matchers = next
	return s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveTroupe(ctx, t) })
}

// RemoveMatcher removes the matcher with the given priority and expression.
func (s *Service) RemoveMatcher(ctx context.Context, troupeID, expression string, priority int) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	for i, m := range t.Matchers {
		if m.Expression == expression && m.Priority == priority {
			t.Matchers = append(t.Matchers[:i], t.Matchers[i+1:]...)
			return s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveTroupe(ctx, t) })
		}
	}
	return faults.Client("matcher (%q, priority %d) does not exist", expression, priority)
}

// CreateEventType adds an event type with the given title and point value.
func (s *Service) CreateEventType(ctx context.Context, troupeID, title string, value float64) (*models.EventType, error) {
	if _, err := s.guard(ctx, troupeID); err != nil {
		return nil, err
	}
	existing, err := s.store.ListEventTypes(ctx, troupeID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= models.MaxEventTypes {
		return nil, faults.Client("event type limit of %d reached", models.MaxEventTypes)
	}
	et := &models.EventType{
		ID:       uuid.NewString(),
		TroupeID: troupeID,
		Title:    title,
		Value:    value,
		Position: len(existing),
	}
	err = s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveEventType(ctx, et) })
	if err != nil {
		return nil, err
	}
	return et, nil
}

// AddEventTypeFolder declares a source folder URI on the event type.
func (s *Service) AddEventTypeFolder(ctx context.Context, troupeID, typeID, uri string) error {
	if _, err := s.guard(ctx, troupeID); err != nil {
		return err
	}
	if uri == "" {
		return faults.Client("folder uri must not be empty")
	}
	et, err := s.store.GetEventType(ctx, troupeID, typeID)
	if err != nil {
		return err
	}
	for _, f := range et.Folders {
		if f == uri {
			return faults.Client("folder %s is already declared on event type %s", uri, typeID)
		}
	}
	et.Folders = append(et.Folders, uri)
	return s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveEventType(ctx, et) })
}

// RemoveEventTypeFolder removes a declared source folder URI.
func (s *Service) RemoveEventTypeFolder(ctx context.Context, troupeID, typeID, uri string) error {
	if _, err := s.guard(ctx, troupeID); err != nil {
		return err
	}
	et, err := s.store.GetEventType(ctx, troupeID, typeID)
	if err != nil {
		return err
	}
	for i, f := range et.Folders {
		if f == uri {
			et.Folders = append(et.Folders[:i], et.Folders[i+1:]...)
			return s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveEventType(ctx, et) })
		}
	}
	return faults.Client("folder %s is not declared on event type %s", uri, typeID)
}

// SetEventTypeValue updates a type's point value and propagates it: every
// event still inheriting from the type takes the new value, every attendance
// entry referencing those events is rewritten, and every affected member's
// totals shift by the delta for each qualifying window.
func (s *Service) SetEventTypeValue(ctx context.Context, troupeID, typeID string, value float64) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	et, err := s.store.GetEventType(ctx, troupeID, typeID)
	if err != nil {
		return err
	}

	events, err := s.store.ListEvents(ctx, troupeID)
	if err != nil {
		return err
	}
	var affected []*models.Event
	for _, e := range events {
		if e.EventTypeID == typeID && e.ValueSource == models.ValueFromType {
			affected = append(affected, e)
		}
	}

	return s.commit(ctx, troupeID, func(tx *Store) error {
		et.Value = value
		if err := tx.SaveEventType(ctx, et); err != nil {
			return err
		}
		for _, e := range affected {
			e.Value = value
		}
		if err := tx.SaveEvents(ctx, affected); err != nil {
			return err
		}
		return tx.applyEventValueChange(ctx, t, affected)
	})
}

// SetEventValue pins an event's point value directly, detaching it from
// type-value propagation.
func (s *Service) SetEventValue(ctx context.Context, troupeID, eventID string, value float64) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	e, err := s.store.GetEvent(ctx, troupeID, eventID)
	if err != nil {
		return err
	}
	return s.commit(ctx, troupeID, func(tx *Store) error {
		e.Value = value
		e.ValueSource = models.ValueManual
		if err := tx.SaveEvents(ctx, []*models.Event{e}); err != nil {
			return err
		}
		return tx.applyEventValueChange(ctx, t, []*models.Event{e})
	})
}

// AssignEventType attaches an event to a type, inheriting the type's value.
func (s *Service) AssignEventType(ctx context.Context, troupeID, eventID, typeID string) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	e, err := s.store.GetEvent(ctx, troupeID, eventID)
	if err != nil {
		return err
	}
	et, err := s.store.GetEventType(ctx, troupeID, typeID)
	if err != nil {
		return err
	}
	return s.commit(ctx, troupeID, func(tx *Store) error {
		e.EventTypeID = et.ID
		e.EventTypeTitle = et.Title
		e.Value = et.Value
		e.ValueSource = models.ValueFromType
		if err := tx.SaveEvents(ctx, []*models.Event{e}); err != nil {
			return err
		}
		return tx.applyEventValueChange(ctx, t, []*models.Event{e})
	})
}

// DeleteEventType removes the type and strips its association from events
// and attendance entries. The events themselves survive with their current
// value pinned.
func (s *Service) DeleteEventType(ctx context.Context, troupeID, typeID string) error {
	if _, err := s.guard(ctx, troupeID); err != nil {
		return err
	}
	if _, err := s.store.GetEventType(ctx, troupeID, typeID); err != nil {
		return err
	}
	events, err := s.store.ListEvents(ctx, troupeID)
	if err != nil {
		return err
	}
	pages, err := s.store.ListAttendance(ctx, troupeID)
	if err != nil {
		return err
	}

	return s.commit(ctx, troupeID, func(tx *Store) error {
		for _, e := range events {
			if e.EventTypeID != typeID {
				continue
			}
			e.EventTypeID = ""
			e.EventTypeTitle = ""
			e.ValueSource = models.ValueManual
			if err := tx.SaveEvents(ctx, []*models.Event{e}); err != nil {
				return err
			}
		}
		for _, p := range pages {
			changed := false
			for id, entry := range p.Entries {
				if entry.EventTypeID == typeID {
					entry.EventTypeID = ""
					p.Entries[id] = entry
					changed = true
				}
			}
			if changed {
				if err := tx.db.WithContext(ctx).Save(p).Error; err != nil {
					return err
				}
			}
		}
		return tx.DeleteEventType(ctx, troupeID, typeID)
	})
}

// SetOriginEvent designates the event whose field mappings take precedence
// over the override flag during sync.
func (s *Service) SetOriginEvent(ctx context.Context, troupeID, eventID string) error {
	t, err := s.guard(ctx, troupeID)
	if err != nil {
		return err
	}
	if eventID != "" {
		if _, err := s.store.GetEvent(ctx, troupeID, eventID); err != nil {
			return err
		}
	}
	t.OriginEventID = eventID
	return s.commit(ctx, troupeID, func(tx *Store) error { return tx.SaveTroupe(ctx, t) })
}

// applyEventValueChange reconciles attendance entries and member point
// totals after the value of the given events changed. Entries store the
// value that was credited, so the shift per member and window is the
// difference between the stored and the current event value.
func (s *Store) applyEventValueChange(ctx context.Context, t *models.Troupe, events []*models.Event) error {
	if len(events) == 0 {
		return nil
	}
	byID := make(map[string]*models.Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}

	pages, err := s.ListAttendance(ctx, t.ID)
	if err != nil {
		return err
	}

	shifts := make(map[string]map[string]float64) // memberID -> point type -> delta
	for _, p := range pages {
		changed := false
		for eventID, entry := range p.Entries {
			e, hit := byID[eventID]
			if !hit {
				continue
			}
			delta := e.Value - entry.Value
			if delta != 0 {
				if shifts[p.MemberID] == nil {
					shifts[p.MemberID] = make(map[string]float64)
				}
				for name, window := range t.PointTypes {
					if window.Contains(entry.StartDate) {
						shifts[p.MemberID][name] += delta
					}
				}
			}
			entry.Value = e.Value
			entry.EventTypeID = e.EventTypeID
			p.Entries[eventID] = entry
			changed = true
		}
		if changed {
			if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
				return fmt.Errorf("failed to save attendance page: %w", err)
			}
		}
	}

	if len(shifts) == 0 {
		return nil
	}
	members, err := s.ListMembers(ctx, t.ID)
	if err != nil {
		return err
	}
	for _, m := range members {
		deltas, hit := shifts[m.ID]
		if !hit {
			continue
		}
		if m.Points == nil {
			m.Points = make(map[string]float64)
		}
		for name, d := range deltas {
			m.Points[name] += d
		}
		if err := s.SaveMembers(ctx, []*models.Member{m}); err != nil {
			return err
		}
	}
	return nil
}
