package sync

import (
	"testing"
	"time"

	"rollcall/feature/troupe/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAudienceOverridePrecedence(t *testing.T) {
	tr := testTroupe()
	tr.OriginEventID = "origin"

	existing := &models.Member{
		ID: "mem-1", TroupeID: "tr", Key: "m-1",
		Properties: map[string]models.PropertyValue{
			models.PropMemberID: {Value: "m-1"},
			models.PropEmail:    {Value: "pinned@example.com", Override: true},
			models.PropLastName: {Value: "Stale"},
		},
		Points: map[string]float64{models.PointTotal: 9},
	}
	a := NewAudience(tr, []*models.Member{existing})

	// The reset cleared non-overridden properties and zeroed points.
	obs := a.Snapshot()["m-1"]
	require.NotNil(t, obs)
	assert.Equal(t, 0.0, obs.Member.Points[models.PointTotal])
	_, kept := obs.Member.Properties[models.PropLastName]
	assert.False(t, kept)

	ordinary := &models.Event{ID: "ev-1", Value: 1, StartDate: date(2025, 3, 1)}
	a.Observe(tr, ordinary, "m-1", map[string]any{
		models.PropMemberID: "m-1",
		models.PropEmail:    "fresh@example.com",
	})
	assert.Equal(t, "pinned@example.com", obs.Member.Properties[models.PropEmail].Value)

	origin := &models.Event{ID: "origin", Value: 0, StartDate: date(2025, 3, 2)}
	a.Observe(tr, origin, "m-1", map[string]any{
		models.PropMemberID: "m-1",
		models.PropEmail:    "official@example.com",
	})
	got := obs.Member.Properties[models.PropEmail]
	assert.Equal(t, "official@example.com", got.Value)
	assert.True(t, got.Override)
}

func TestAudienceScoresEachEventOnce(t *testing.T) {
	tr := testTroupe()
	a := NewAudience(tr, nil)
	ev := &models.Event{ID: "ev-1", Value: 3, StartDate: date(2025, 3, 1)}

	a.Observe(tr, ev, "m-1", map[string]any{models.PropMemberID: "m-1"})
	a.Observe(tr, ev, "m-1", map[string]any{models.PropMemberID: "m-1"})

	obs := a.Snapshot()["m-1"]
	assert.Equal(t, 3.0, obs.Member.Points[models.PointTotal])
	assert.Len(t, obs.Attendance, 1)
}

func TestAudiencePointWindows(t *testing.T) {
	tr := testTroupe()
	tr.PointTypes["Fall"] = models.PointWindow{Start: date(2025, 9, 1), End: date(2025, 12, 1)}

	a := NewAudience(tr, nil)
	inWindow := &models.Event{ID: "e1", Value: 3, StartDate: date(2025, 10, 5)}
	outside := &models.Event{ID: "e2", Value: 4, StartDate: date(2025, 5, 5)}

	a.Observe(tr, inWindow, "m-1", map[string]any{models.PropMemberID: "m-1"})
	a.Observe(tr, outside, "m-1", map[string]any{models.PropMemberID: "m-1"})

	m := a.Snapshot()["m-1"].Member
	assert.Equal(t, 7.0, m.Points[models.PointTotal])
	assert.Equal(t, 3.0, m.Points["Fall"])
}

func TestFinalizeRetiresUnseenMembersWithoutOverrides(t *testing.T) {
	tr := testTroupe()
	vanished := &models.Member{
		ID: "mem-gone", TroupeID: "tr", Key: "gone",
		Properties: map[string]models.PropertyValue{models.PropMemberID: {Value: "gone"}},
		Points:     map[string]float64{},
	}
	pinned := &models.Member{
		ID: "mem-pinned", TroupeID: "tr", Key: "pinned",
		Properties: map[string]models.PropertyValue{
			models.PropMemberID: {Value: "pinned"},
			models.PropEmail:    {Value: "keep@example.com", Override: true},
		},
		Points: map[string]float64{},
	}
	existing := []*models.Member{vanished, pinned}
	a := NewAudience(tr, existing)

	rec := Finalize(tr, a, existing)

	assert.Equal(t, []string{"mem-gone"}, rec.Delete)
	require.Len(t, rec.Save, 1)
	assert.Equal(t, "mem-pinned", rec.Save[0].ID)
	// The retained member got its key property restored.
	assert.Equal(t, "pinned", rec.Save[0].Properties[models.PropMemberID].Value)
}

func TestFinalizeFillsOptionalDefaults(t *testing.T) {
	tr := testTroupe()
	a := NewAudience(tr, nil)
	ev := &models.Event{ID: "ev-1", Value: 1, StartDate: date(2025, 3, 1)}
	a.Observe(tr, ev, "m-1", map[string]any{models.PropMemberID: "m-1"})

	rec := Finalize(tr, a, nil)
	require.Len(t, rec.Save, 1)
	assert.Equal(t, 1, rec.Created)
	m := rec.Save[0]
	assert.Equal(t, "", m.Properties[models.PropEmail].Value)
	assert.False(t, m.Properties[models.PropEmail].Override)
	require.Contains(t, rec.Attendance, m.ID)
	assert.Len(t, rec.Attendance[m.ID], 1)
}
