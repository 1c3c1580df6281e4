package models

import (
	"time"

	"rollcall/core/matcher"
	"rollcall/core/props"
	"rollcall/core/source"
)

// Baseline property names. These are seeded at troupe creation and can never
// be removed or retyped.
const (
	PropMemberID  = "Member ID"
	PropFirstName = "First Name"
	PropLastName  = "Last Name"
	PropEmail     = "Email"
	PropBirthday  = "Birthday"
)

// PointTotal is the baseline point type accruing every attended event.
const PointTotal = "Total"

// Structural maxima per troupe.
const (
	MaxEventTypes = 10
	MaxProperties = 20
	MaxPointTypes = 10
	MaxMatchers   = 25
)

// AttendancePageSize caps the entries stored in one attendance bucket.
const AttendancePageSize = 25

// PropertySchema maps property names to their type tags.
type PropertySchema map[string]props.Tag

// BaselineSchema returns the seed schema every troupe starts with.
func BaselineSchema() PropertySchema {
	return PropertySchema{
		PropMemberID:  {Base: props.TypeString, Required: true},
		PropFirstName: {Base: props.TypeString},
		PropLastName:  {Base: props.TypeString},
		PropEmail:     {Base: props.TypeString},
		PropBirthday:  {Base: props.TypeDate},
	}
}

// IsBaselineProperty reports whether name belongs to the immutable seed set.
func IsBaselineProperty(name string) bool {
	switch name {
	case PropMemberID, PropFirstName, PropLastName, PropEmail, PropBirthday:
		return true
	}
	return false
}

// PointWindow is the time box of one point type. A zero Start or End leaves
// that side unbounded; the baseline Total window is unbounded on both.
type PointWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w PointWindow) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// PointTypes maps point type names to their windows.
type PointTypes map[string]PointWindow

// BaselinePoints returns the seed point types every troupe starts with.
func BaselinePoints() PointTypes {
	return PointTypes{PointTotal: {}}
}

// Dashboard is the derived, non-authoritative aggregate snapshot recomputed
// after each successful sync.
type Dashboard struct {
	Members           int                   `json:"members"`
	Events            int                   `json:"events"`
	PointTotals       map[string]float64    `json:"point_totals"`
	PointAverages     map[string]float64    `json:"point_averages"`
	EventsByType      map[string]int        `json:"events_by_type"`
	AttendanceByType  map[string]float64    `json:"attendance_by_type"`
	UpcomingBirthdays []UpcomingBirthday    `json:"upcoming_birthdays"`
	ComputedAt        time.Time             `json:"computed_at"`
}

// UpcomingBirthday is one entry of the dashboard birthday roll-up.
type UpcomingBirthday struct {
	MemberID string    `json:"member_id"`
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
}

// Troupe is the root aggregate: one organization's structural configuration
// and sync state.
type Troupe struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:120"`
	ReportURI string `gorm:"size:255"`
	// OriginEventID designates the event whose field data may overwrite
	// overridden member properties.
	OriginEventID string `gorm:"size:36"`
	// SyncLock is the single serialization point: at most one sync holds it.
	SyncLock bool

	Properties          PropertySchema    `gorm:"serializer:json"`
	ConfirmedProperties PropertySchema    `gorm:"serializer:json"`
	PointTypes          PointTypes        `gorm:"serializer:json"`
	ConfirmedPointTypes PointTypes        `gorm:"serializer:json"`
	Matchers            []matcher.Matcher `gorm:"serializer:json"`
	Dashboard           *Dashboard        `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StringList is a JSON-serialized ordered list of strings.
type StringList []string

// EventType groups events and carries their default point value.
type EventType struct {
	ID       string `gorm:"primaryKey;size:36"`
	TroupeID string `gorm:"index;size:36"`
	Title    string `gorm:"size:120"`
	Value    float64
	// Position preserves the troupe's declared ordering.
	Position int
	// Folders are the declared source folder URIs to explore.
	Folders StringList `gorm:"serializer:json"`
	// ConfirmedFolders snapshots what discovery actually explored last sync.
	ConfirmedFolders StringList `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValueSource tags how an event's point value is maintained: inherited from
// its event type or pinned manually. The two are mutually exclusive.
type ValueSource string

const (
	// ValueFromType keeps the event's value in lockstep with its type.
	ValueFromType ValueSource = "from_type"
	// ValueManual detaches the event from type-value propagation.
	ValueManual ValueSource = "manual"
)

// FieldMapping records how one external field resolves to a member property.
type FieldMapping struct {
	// Label is the raw field label as last seen at the source.
	Label string `json:"label"`
	// Property is the resolved member property; empty means unmapped.
	Property string `json:"property,omitempty"`
	// MatcherPriority is the priority of the matcher that resolved the
	// mapping; nil for manual mappings.
	MatcherPriority *int `json:"matcher_priority,omitempty"`
	// Pinned privileges this resolution over newer matcher runs.
	Pinned bool `json:"pinned,omitempty"`
}

// FieldMap maps external field IDs to their property mappings.
type FieldMap map[string]FieldMapping

// Event is one discovered or registered attendance source.
type Event struct {
	ID       string `gorm:"primaryKey;size:36"`
	TroupeID string `gorm:"index;size:36"`
	Title    string `gorm:"size:200"`

	Source          source.Ref  `gorm:"serializer:json"`
	ConfirmedSource *source.Ref `gorm:"serializer:json"`

	StartDate time.Time
	// EventTypeID is empty for untyped events.
	EventTypeID string `gorm:"size:36;index"`
	// EventTypeTitle is denormalized for reporting.
	EventTypeTitle string `gorm:"size:120"`

	Value       float64
	ValueSource ValueSource `gorm:"size:16"`

	Fields FieldMap `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMemberID reports whether any field maps to the Member ID property; only
// such events participate in audience discovery.
func (e *Event) HasMemberID() bool {
	for _, m := range e.Fields {
		if m.Property == PropMemberID {
			return true
		}
	}
	return false
}

// PropertyValue is one member property observation with its override flag.
// Override=true marks a deliberately set value that ordinary event-derived
// data must not overwrite.
type PropertyValue struct {
	Value    any  `json:"value"`
	Override bool `json:"override,omitempty"`
}

// Member is one computed membership record.
type Member struct {
	ID       string `gorm:"primaryKey;size:36"`
	TroupeID string `gorm:"index;size:36"`
	// Key is the Member ID property value identifying the person across
	// events.
	Key string `gorm:"size:120;index"`

	Properties map[string]PropertyValue `gorm:"serializer:json"`
	Points     map[string]float64       `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasOverride reports whether any property carries the override flag.
func (m *Member) HasOverride() bool {
	for _, p := range m.Properties {
		if p.Override {
			return true
		}
	}
	return false
}

// AttendanceEntry records one attended event inside a bucket.
type AttendanceEntry struct {
	EventTypeID string    `json:"event_type_id,omitempty"`
	Value       float64   `json:"value"`
	StartDate   time.Time `json:"start_date"`
}

// AttendancePage is one bucket of a member's append-only attendance record.
// Buckets are capped at AttendancePageSize entries and chained by Page.
type AttendancePage struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	TroupeID string `gorm:"index;size:36"`
	MemberID string `gorm:"index;size:36"`
	Page     int

	Entries map[string]AttendanceEntry `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Limits tracks a troupe's remaining quota counters. The sync core consults
// them as a gate; it does not define the quota policy.
type Limits struct {
	TroupeID        string `gorm:"primaryKey;size:36"`
	StructuralEdits int
	MemberSlots     int
	EventSlots      int

	UpdatedAt time.Time
}
