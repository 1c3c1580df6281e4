package report

import (
	"context"
	"testing"
	"time"

	"rollcall/feature/troupe/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func reportTroupe() *models.Troupe {
	return &models.Troupe{
		ID:         "tr",
		Name:       "The Players",
		Properties: models.BaselineSchema(),
		PointTypes: models.PointTypes{
			models.PointTotal: {},
			"Fall":            {Start: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func reportState() ([]*models.EventType, []*models.Event, []*models.Member, map[string]map[string]models.AttendanceEntry) {
	types := []*models.EventType{
		{ID: "t1", TroupeID: "tr", Title: "Rehearsal", Value: 2, Folders: models.StringList{"root"}},
	}
	events := []*models.Event{
		{ID: "e1", TroupeID: "tr", Title: "March", EventTypeID: "t1", EventTypeTitle: "Rehearsal",
			Value: 2, StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "e2", TroupeID: "tr", Title: "April", EventTypeID: "t1", EventTypeTitle: "Rehearsal",
			Value: 2, StartDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	members := []*models.Member{
		{ID: "mem-1", TroupeID: "tr", Key: "m-1",
			Properties: map[string]models.PropertyValue{
				models.PropMemberID:  {Value: "m-1"},
				models.PropFirstName: {Value: "Ada"},
			},
			Points: map[string]float64{models.PointTotal: 4, "Fall": 0}},
	}
	attendance := map[string]map[string]models.AttendanceEntry{
		"mem-1": {
			"e1": {EventTypeID: "t1", Value: 2, StartDate: events[0].StartDate},
			"e2": {EventTypeID: "t1", Value: 2, StartDate: events[1].StartDate},
		},
	}
	return types, events, members, attendance
}

func TestBuildDocumentLayout(t *testing.T) {
	tr := reportTroupe()
	types, events, members, attendance := reportState()

	doc := BuildDocument(tr, types, events, members, attendance)
	assert.Equal(t, "The Players", doc.Title)

	et := doc.Sections[SectionEventTypes]
	require.Len(t, et.Rows, 1)
	assert.Equal(t, "Rehearsal", et.Rows[0][0].Value)
	assert.Equal(t, "2", et.Rows[0][2].Value)

	evs := doc.Sections[SectionEvents]
	require.Len(t, evs.Rows, 2)
	// Events sort by start date.
	assert.Equal(t, "March", evs.Rows[0][0].Value)
	assert.Equal(t, "April", evs.Rows[1][0].Value)

	aud := doc.Sections[SectionAudience]
	require.Len(t, aud.Rows, 1)
	// Columns: five baseline properties, Total then Fall, then two events.
	require.Equal(t, 9, aud.Columns())
	assert.Equal(t, models.PropMemberID, aud.Header[0].Value)
	assert.True(t, aud.Header[0].Bold)
	assert.Equal(t, models.PointTotal, aud.Header[5].Value)
	assert.Equal(t, "Fall", aud.Header[6].Value)

	row := aud.Rows[0]
	assert.Equal(t, "m-1", row[0].Value)
	assert.Equal(t, "Ada", row[1].Value)
	assert.Equal(t, "4", row[5].Value)
	assert.Equal(t, attendedMark, row[7].Value)
	assert.Equal(t, attendedMark, row[8].Value)

	assert.Len(t, aud.Widths, aud.Columns())
	for _, w := range aud.Widths {
		assert.GreaterOrEqual(t, w, widthTiers[0].width)
	}
}

func TestRefreshCreatesThenConverges(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := NewSynchronizer(backend, zap.NewNop())
	tr := reportTroupe()
	types, events, members, attendance := reportState()

	uri, err := s.Refresh(ctx, tr, types, events, members, attendance)
	require.NoError(t, err)
	require.NotEmpty(t, uri)
	tr.ReportURI = uri

	diffs, err := s.Validate(ctx, tr, types, events, members, attendance)
	require.NoError(t, err)
	assert.Empty(t, diffs)

	// A second refresh with unchanged state touches nothing.
	backend.ResetOps()
	again, err := s.Refresh(ctx, tr, types, events, members, attendance)
	require.NoError(t, err)
	assert.Equal(t, uri, again)
	assert.Empty(t, backend.Ops)
}

func TestRefreshTouchesOnlyChangedSections(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := NewSynchronizer(backend, zap.NewNop())
	tr := reportTroupe()
	types, events, members, attendance := reportState()

	uri, err := s.Refresh(ctx, tr, types, events, members, attendance)
	require.NoError(t, err)
	tr.ReportURI = uri

	// Only a member property changes: same dimensions, audience cells only.
	members[0].Properties[models.PropFirstName] = models.PropertyValue{Value: "Grace"}
	backend.ResetOps()
	_, err = s.Refresh(ctx, tr, types, events, members, attendance)
	require.NoError(t, err)
	assert.Equal(t, []string{"write:2"}, backend.Ops)

	// A new member changes the audience dimensions, still no other section.
	members = append(members, &models.Member{
		ID: "mem-2", TroupeID: "tr", Key: "m-2",
		Properties: map[string]models.PropertyValue{models.PropMemberID: {Value: "m-2"}},
		Points:     map[string]float64{models.PointTotal: 0, "Fall": 0},
	})
	backend.ResetOps()
	_, err = s.Refresh(ctx, tr, types, events, members, attendance)
	require.NoError(t, err)
	assert.Equal(t, []string{"resize:2:2x9", "write:2"}, backend.Ops)
}

func TestRefreshRecreatesGoneDocument(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := NewSynchronizer(backend, zap.NewNop())
	tr := reportTroupe()
	types, events, members, attendance := reportState()

	uri, err := s.Refresh(ctx, tr, types, events, members, attendance)
	require.NoError(t, err)
	require.NoError(t, backend.Delete(ctx, uri))
	tr.ReportURI = uri

	fresh, err := s.Refresh(ctx, tr, types, events, members, attendance)
	require.NoError(t, err)
	assert.NotEqual(t, uri, fresh)

	tr.ReportURI = fresh
	diffs, err := s.Validate(ctx, tr, types, events, members, attendance)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestValidateFlagsDivergence(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := NewSynchronizer(backend, zap.NewNop())
	tr := reportTroupe()
	types, events, members, attendance := reportState()

	uri, err := s.Refresh(ctx, tr, types, events, members, attendance)
	require.NoError(t, err)
	tr.ReportURI = uri

	members[0].Points[models.PointTotal] = 99

	diffs, err := s.Validate(ctx, tr, types, events, members, attendance)
	require.NoError(t, err)
	assert.Equal(t, []string{"Audience"}, diffs)
}

func TestDeleteReportToleratesGoneDocument(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := NewSynchronizer(backend, zap.NewNop())

	assert.NoError(t, s.DeleteReport(ctx, ""))
	assert.NoError(t, s.DeleteReport(ctx, "memory://never-existed"))
}
