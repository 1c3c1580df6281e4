package troupe

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"rollcall/core/faults"
	"rollcall/feature/troupe/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the data-access capability for the ledger collections. Components
// receive it by injection; nothing subclasses it.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store over the given connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the ledger schema.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Troupe{},
		&models.EventType{},
		&models.Event{},
		&models.Member{},
		&models.AttendancePage{},
		&models.Limits{},
	)
}

// Transaction runs fn inside one database transaction. Every write fn issues
// through the passed store commits or rolls back as a unit; this is the
// all-or-nothing batch behind the sync persist phase.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CreateTroupe creates a troupe seeded with the baseline schema, baseline
// point types, and a fresh limits row.
func (s *Store) CreateTroupe(ctx context.Context, name string) (*models.Troupe, error) {
	if name == "" {
		return nil, faults.Client("troupe name must not be empty")
	}
	t := &models.Troupe{
		ID:                  uuid.NewString(),
		Name:                name,
		Properties:          models.BaselineSchema(),
		ConfirmedProperties: models.PropertySchema{},
		PointTypes:          models.BaselinePoints(),
		ConfirmedPointTypes: models.PointTypes{},
	}
	limits := &models.Limits{
		TroupeID:        t.ID,
		StructuralEdits: 500,
		MemberSlots:     2000,
		EventSlots:      500,
	}

	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.db.Create(t).Error; err != nil {
			return fmt.Errorf("failed to create troupe: %w", err)
		}
		if err := tx.db.Create(limits).Error; err != nil {
			return fmt.Errorf("failed to create limits: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTroupe loads one troupe; a missing ID is a ClientError.
func (s *Store) GetTroupe(ctx context.Context, id string) (*models.Troupe, error) {
	var t models.Troupe
	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, faults.Client("troupe %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load troupe %s: %w", id, err)
	}
	return &t, nil
}

// SaveTroupe persists the full troupe row.
func (s *Store) SaveTroupe(ctx context.Context, t *models.Troupe) error {
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return fmt.Errorf("failed to save troupe %s: %w", t.ID, err)
	}
	return nil
}

// AcquireSyncLock flips the troupe's sync lock with a single compare-and-set
// update. It is the sole concurrency guard for sync: a lock already held
// yields a ClientError and no mutation.
func (s *Store) AcquireSyncLock(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Troupe{}).
		Where("id = ? AND sync_lock = ?", id, false).
		Update("sync_lock", true)
	if res.Error != nil {
		return fmt.Errorf("failed to acquire sync lock for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the troupe is gone or a sync is already in flight.
		if _, err := s.GetTroupe(ctx, id); err != nil {
			return err
		}
		return faults.Client("a sync is already running for troupe %s", id)
	}
	return nil
}

// ReleaseSyncLock clears the lock unconditionally. It must succeed (or at
// least be attempted) on every sync exit path.
func (s *Store) ReleaseSyncLock(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Troupe{}).
		Where("id = ?", id).
		Update("sync_lock", false)
	if res.Error != nil {
		return fmt.Errorf("failed to release sync lock for %s: %w", id, res.Error)
	}
	return nil
}

// ListEventTypes returns the troupe's event types in declared order.
func (s *Store) ListEventTypes(ctx context.Context, troupeID string) ([]*models.EventType, error) {
	var out []*models.EventType
	err := s.db.WithContext(ctx).
		Where("troupe_id = ?", troupeID).
		Order("position asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list event types: %w", err)
	}
	return out, nil
}

// GetEventType loads one event type; a missing ID is a ClientError.
func (s *Store) GetEventType(ctx context.Context, troupeID, id string) (*models.EventType, error) {
	var et models.EventType
	err := s.db.WithContext(ctx).First(&et, "troupe_id = ? AND id = ?", troupeID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, faults.Client("event type %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event type %s: %w", id, err)
	}
	return &et, nil
}

// SaveEventType persists one event type row.
func (s *Store) SaveEventType(ctx context.Context, et *models.EventType) error {
	if err := s.db.WithContext(ctx).Save(et).Error; err != nil {
		return fmt.Errorf("failed to save event type %s: %w", et.ID, err)
	}
	return nil
}

// DeleteEventType removes the row. Stripping the association from events is
// the service's responsibility.
func (s *Store) DeleteEventType(ctx context.Context, troupeID, id string) error {
	err := s.db.WithContext(ctx).
		Where("troupe_id = ? AND id = ?", troupeID, id).
		Delete(&models.EventType{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete event type %s: %w", id, err)
	}
	return nil
}

// ListEvents returns every event of the troupe.
func (s *Store) ListEvents(ctx context.Context, troupeID string) ([]*models.Event, error) {
	var out []*models.Event
	err := s.db.WithContext(ctx).Where("troupe_id = ?", troupeID).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return out, nil
}

// GetEvent loads one event; a missing ID is a ClientError.
func (s *Store) GetEvent(ctx context.Context, troupeID, id string) (*models.Event, error) {
	var e models.Event
	err := s.db.WithContext(ctx).First(&e, "troupe_id = ? AND id = ?", troupeID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, faults.Client("event %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", id, err)
	}
	return &e, nil
}

// SaveEvents upserts a batch of events.
func (s *Store) SaveEvents(ctx context.Context, events []*models.Event) error {
	for _, e := range events {
		if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
			return fmt.Errorf("failed to save event %s: %w", e.ID, err)
		}
	}
	return nil
}

// DeleteEvents removes the given events by ID.
func (s *Store) DeleteEvents(ctx context.Context, troupeID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("troupe_id = ? AND id IN ?", troupeID, ids).
		Delete(&models.Event{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}

// ListMembers returns every member of the troupe.
func (s *Store) ListMembers(ctx context.Context, troupeID string) ([]*models.Member, error) {
	var out []*models.Member
	err := s.db.WithContext(ctx).Where("troupe_id = ?", troupeID).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return out, nil
}

// SaveMembers upserts a batch of members.
func (s *Store) SaveMembers(ctx context.Context, members []*models.Member) error {
	for _, m := range members {
		if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
			return fmt.Errorf("failed to save member %s: %w", m.ID, err)
		}
	}
	return nil
}

// DeleteMembers removes the given members and their attendance pages.
func (s *Store) DeleteMembers(ctx context.Context, troupeID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("troupe_id = ? AND member_id IN ?", troupeID, ids).
		Delete(&models.AttendancePage{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete attendance pages: %w", err)
	}
	err = s.db.WithContext(ctx).
		Where("troupe_id = ? AND id IN ?", troupeID, ids).
		Delete(&models.Member{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete members: %w", err)
	}
	return nil
}

// ListAttendance returns all attendance pages of the troupe ordered by
// member and page number.
func (s *Store) ListAttendance(ctx context.Context, troupeID string) ([]*models.AttendancePage, error) {
	var out []*models.AttendancePage
	err := s.db.WithContext(ctx).
		Where("troupe_id = ?", troupeID).
		Order("member_id asc, page asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	return out, nil
}

// ReplaceAttendance rewrites a member's attendance record as chained pages
// of at most AttendancePageSize entries. Entry order within the record is
// made deterministic by sorting event IDs.
func (s *Store) ReplaceAttendance(ctx context.Context, troupeID, memberID string, entries map[string]models.AttendanceEntry) error {
	err := s.db.WithContext(ctx).
		Where("troupe_id = ? AND member_id = ?", troupeID, memberID).
		Delete(&models.AttendancePage{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear attendance for member %s: %w", memberID, err)
	}

	eventIDs := make([]string, 0, len(entries))
	for id := range entries {
		eventIDs = append(eventIDs, id)
	}
	sort.Strings(eventIDs)

	page := 0
	bucket := make(map[string]models.AttendanceEntry, models.AttendancePageSize)
	flush := func() error {
		if len(bucket) == 0 {
			return nil
		}
		row := &models.AttendancePage{
			TroupeID: troupeID,
			MemberID: memberID,
			Page:     page,
			Entries:  bucket,
		}
		if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
			return fmt.Errorf("failed to save attendance page %d for member %s: %w", page, memberID, err)
		}
		page++
		bucket = make(map[string]models.AttendanceEntry, models.AttendancePageSize)
		return nil
	}

	for _, id := range eventIDs {
		bucket[id] = entries[id]
		if len(bucket) == models.AttendancePageSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// limitColumns maps limit names to their columns for the atomic gate.
var limitColumns = map[string]string{
	"structural_edits": "structural_edits",
	"member_slots":     "member_slots",
	"event_slots":      "event_slots",
}

// TryConsumeLimit atomically decrements the named quota counter by n and
// reports whether enough quota remained. Unknown counters are an invariant
// violation since callers name them statically.
func (s *Store) TryConsumeLimit(ctx context.Context, troupeID, name string, n int) (bool, error) {
	col, ok := limitColumns[name]
	if !ok {
		return false, faults.Invariant("unknown limit counter %q", name)
	}
	res := s.db.WithContext(ctx).
		Model(&models.Limits{}).
		Where(fmt.Sprintf("troupe_id = ? AND %s >= ?", col), troupeID, n).
		UpdateColumn(col, gorm.Expr(col+" - ?", n))
	if res.Error != nil {
		return false, fmt.Errorf("failed to consume limit %s: %w", name, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetLimits loads the troupe's quota row.
func (s *Store) GetLimits(ctx context.Context, troupeID string) (*models.Limits, error) {
	var l models.Limits
	err := s.db.WithContext(ctx).First(&l, "troupe_id = ?", troupeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, faults.Client("limits for troupe %s not found", troupeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load limits: %w", err)
	}
	return &l, nil
}
