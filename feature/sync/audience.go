package sync

import (
	"sync"
	"time"

	"rollcall/feature/troupe/models"

	"github.com/google/uuid"
)

// Observation is one member's record-in-progress during a sync pass: the
// member row being rebuilt plus the attendance accumulated so far.
type Observation struct {
	Member     *models.Member
	Attendance map[string]models.AttendanceEntry
	// Seen marks members observed by at least one event this pass.
	Seen bool
}

// Audience is the shared per-troupe accumulator explorers fold into. All
// folds serialize on one mutex so the merge invariants hold under the
// per-event fan-out.
type Audience struct {
	mu       sync.Mutex
	byKey    map[string]*Observation
	troupeID string
}

// NewAudience seeds the accumulator from the existing members, applying the
// pre-discovery reset: point totals zeroed across the troupe's current point
// types, non-overridden properties cleared, overridden ones retained
// verbatim. Explorer passes then rebuild everything from scratch, which is
// what makes sync idempotent and self-healing.
func NewAudience(tr *models.Troupe, existing []*models.Member) *Audience {
	a := &Audience{
		byKey:    make(map[string]*Observation, len(existing)),
		troupeID: tr.ID,
	}
	for _, m := range existing {
		reset := &models.Member{
			ID:         m.ID,
			TroupeID:   m.TroupeID,
			Key:        m.Key,
			Properties: make(map[string]models.PropertyValue),
			Points:     make(map[string]float64, len(tr.PointTypes)),
			CreatedAt:  m.CreatedAt,
		}
		for name, p := range m.Properties {
			if p.Override {
				reset.Properties[name] = p
			}
		}
		for name := range tr.PointTypes {
			reset.Points[name] = 0
		}
		a.byKey[m.Key] = &Observation{
			Member:     reset,
			Attendance: make(map[string]models.AttendanceEntry),
		}
	}
	return a
}

// Observe folds one event-derived record into the accumulator. rec maps
// property names to already-validated typed values. Merge rules:
//
//   - A property flagged override is only written by the troupe's origin
//     event; origin writes set the flag.
//   - Attendance for an event already accumulated this pass is not re-added
//     or re-scored.
//   - Point totals accrue the event's value for every window containing the
//     event's start date.
func (a *Audience) Observe(tr *models.Troupe, ev *models.Event, key string, rec map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	obs, ok := a.byKey[key]
	if !ok {
		obs = &Observation{
			Member: &models.Member{
				ID:         uuid.NewString(),
				TroupeID:   a.troupeID,
				Key:        key,
				Properties: make(map[string]models.PropertyValue),
				Points:     make(map[string]float64, len(tr.PointTypes)),
			},
			Attendance: make(map[string]models.AttendanceEntry),
		}
		for name := range tr.PointTypes {
			obs.Member.Points[name] = 0
		}
		a.byKey[key] = obs
	}
	obs.Seen = true

	origin := tr.OriginEventID != "" && tr.OriginEventID == ev.ID
	for name, value := range rec {
		cur, exists := obs.Member.Properties[name]
		if exists && cur.Override && !origin {
			continue
		}
		obs.Member.Properties[name] = models.PropertyValue{Value: value, Override: origin}
	}

	if _, attended := obs.Attendance[ev.ID]; attended {
		return
	}
	obs.Attendance[ev.ID] = models.AttendanceEntry{
		EventTypeID: ev.EventTypeID,
		Value:       ev.Value,
		StartDate:   ev.StartDate,
	}
	for name, window := range tr.PointTypes {
		if window.Contains(ev.StartDate) {
			obs.Member.Points[name] += ev.Value
		}
	}
}

// SetSeen marks a key as observed without contributing data; used when an
// event identifies a member but every other field fails validation.
func (a *Audience) SetSeen(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if obs, ok := a.byKey[key]; ok {
		obs.Seen = true
	}
}

// Snapshot returns the accumulated observations keyed by member key. Callers
// must not mutate concurrently with explorer folds.
func (a *Audience) Snapshot() map[string]*Observation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]*Observation, len(a.byKey))
	for k, v := range a.byKey {
		out[k] = v
	}
	return out
}

// touchStart backfills an event's start date from the earliest response
// timestamp when the event carries none.
func touchStart(ev *models.Event, submitted time.Time) {
	if submitted.IsZero() {
		return
	}
	if ev.StartDate.IsZero() || submitted.Before(ev.StartDate) {
		ev.StartDate = submitted
	}
}
