package sync

import (
	"context"
	"fmt"
	"testing"

	"rollcall/core/database"
	"rollcall/core/faults"
	"rollcall/core/matcher"
	"rollcall/core/source"
	"rollcall/core/source/sourcetest"
	"rollcall/feature/troupe"
	"rollcall/feature/troupe/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store  *troupe.Store
	tree   *sourcetest.Tree
	forms  *sourcetest.Forms
	sheets *sourcetest.Sheets
	orch   *Orchestrator
	tr     *models.Troupe
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Connect(database.Config{
		Driver: "sqlite",
		Name:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)

	store := troupe.NewStore(db)
	require.NoError(t, store.AutoMigrate())

	tr, err := store.CreateTroupe(context.Background(), "The Players")
	require.NoError(t, err)

	tr.Matchers = []matcher.Matcher{
		{Priority: 1, Expression: "member id", Condition: matcher.ConditionExact, Filters: []string{matcher.FilterNoCase}, Property: models.PropMemberID},
		{Priority: 2, Expression: "email", Condition: matcher.ConditionExact, Filters: []string{matcher.FilterNoCase}, Property: models.PropEmail},
	}
	require.NoError(t, store.SaveTroupe(context.Background(), tr))

	f := &fixture{
		store:  store,
		tree:   sourcetest.NewTree(),
		forms:  sourcetest.NewForms(),
		sheets: sourcetest.NewSheets(),
		tr:     tr,
	}
	f.orch = NewOrchestrator(Deps{
		Store:       store,
		Folders:     f.tree,
		Forms:       f.forms,
		Sheets:      f.sheets,
		Logger:      zap.NewNop(),
		Parallelism: 2,
	})
	return f
}

func (f *fixture) addEventType(t *testing.T, title string, value float64, folders ...string) *models.EventType {
	t.Helper()
	et := &models.EventType{
		ID:       uuid.NewString(),
		TroupeID: f.tr.ID,
		Title:    title,
		Value:    value,
		Folders:  folders,
	}
	require.NoError(t, f.store.SaveEventType(context.Background(), et))
	return et
}

func (f *fixture) putSignupForm(uri string, members ...string) {
	responses := make([]source.Response, 0, len(members))
	for i, m := range members {
		responses = append(responses, source.Response{
			Answers:   map[string][]string{"q1": {m}, "q2": {m + "@example.com"}},
			Submitted: fmt.Sprintf("2025-03-%02dT10:00:00Z", i+1),
		})
	}
	f.forms.Put(uri, &sourcetest.Form{
		Questions: []source.Question{
			{FieldID: "q1", Label: "Member ID", Widget: source.WidgetText},
			{FieldID: "q2", Label: "Email", Widget: source.WidgetText},
		},
		Responses: responses,
	})
}

func TestSyncEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addEventType(t, "Rehearsal", 2, "root")
	f.tree.Folders["root"] = []source.Entry{
		{ID: "f1", Name: "March Rehearsal", Kind: source.KindForm},
	}
	f.putSignupForm("f1", "m-1", "m-2")

	res, err := f.orch.Sync(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Events)
	assert.Equal(t, 2, res.Members)

	members, err := f.store.ListMembers(ctx, f.tr.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.Equal(t, 2.0, m.Points[models.PointTotal])
		assert.Equal(t, m.Key+"@example.com", m.Properties[models.PropEmail].Value)
	}

	pages, err := f.store.ListAttendance(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	// The lock is free again and confirmed state was snapshotted.
	tr, err := f.store.GetTroupe(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.False(t, tr.SyncLock)
	assert.Equal(t, tr.Properties, tr.ConfirmedProperties)
	require.NotNil(t, tr.Dashboard)
	assert.Equal(t, 2, tr.Dashboard.Members)
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addEventType(t, "Rehearsal", 2, "root")
	f.tree.Folders["root"] = []source.Entry{
		{ID: "f1", Name: "March Rehearsal", Kind: source.KindForm},
	}
	f.putSignupForm("f1", "m-1")

	_, err := f.orch.Sync(ctx, f.tr.ID)
	require.NoError(t, err)
	first, err := f.store.ListMembers(ctx, f.tr.ID)
	require.NoError(t, err)

	_, err = f.orch.Sync(ctx, f.tr.ID)
	require.NoError(t, err)
	second, err := f.store.ListMembers(ctx, f.tr.ID)
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Points, second[0].Points)
	assert.Equal(t, first[0].Properties, second[0].Properties)

	events, err := f.store.ListEvents(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSyncRejectedWhileLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.AcquireSyncLock(ctx, f.tr.ID))
	_, err := f.orch.Sync(ctx, f.tr.ID)
	require.Error(t, err)
	assert.True(t, faults.IsClient(err))

	// The blocked attempt must not have released the holder's lock.
	tr, err := f.store.GetTroupe(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.True(t, tr.SyncLock)
}

func TestSyncRetiresGoneSourcesAndPrunesMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addEventType(t, "Rehearsal", 2, "root")
	f.tree.Folders["root"] = []source.Entry{
		{ID: "f1", Name: "March", Kind: source.KindForm},
	}
	f.putSignupForm("f1", "m-1")

	_, err := f.orch.Sync(ctx, f.tr.ID)
	require.NoError(t, err)

	// The form vanishes together with its folder entry.
	f.forms.Gone["f1"] = true
	f.tree.Folders["root"] = nil

	res, err := f.orch.Sync(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EventsDeleted)
	assert.Equal(t, 1, res.MembersDeleted)

	events, err := f.store.ListEvents(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
	members, err := f.store.ListMembers(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
	pages, err := f.store.ListAttendance(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestSyncSkipsUnavailableSourceWithoutFailing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addEventType(t, "Rehearsal", 2, "root")
	f.tree.Folders["root"] = []source.Entry{
		{ID: "f1", Name: "March", Kind: source.KindForm},
		{ID: "f2", Name: "April", Kind: source.KindForm},
	}
	f.putSignupForm("f1", "m-1")
	f.putSignupForm("f2", "m-2")

	_, err := f.orch.Sync(ctx, f.tr.ID)
	require.NoError(t, err)

	// f2 becomes temporarily unreadable: its event survives, its member is
	// pruned for the pass because nothing else observed them.
	f.forms.Fail["f2"] = fmt.Errorf("rate limited")

	res, err := f.orch.Sync(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Events)

	members, err := f.store.ListMembers(ctx, f.tr.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "m-1", members[0].Key)
}

func TestSyncFailsWhenNoFolderListable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addEventType(t, "Rehearsal", 2, "root")
	f.tree.Fail["root"] = fmt.Errorf("provider down")

	_, err := f.orch.Sync(ctx, f.tr.ID)
	require.Error(t, err)
	assert.True(t, faults.IsUnavailable(err))

	// Even the failed pass released the lock.
	tr, err := f.store.GetTroupe(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.False(t, tr.SyncLock)
}

func TestSyncStripsGoneFoldersFromEventType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	et := f.addEventType(t, "Rehearsal", 2, "root", "dead")
	f.tree.Folders["root"] = []source.Entry{
		{ID: "f1", Name: "March", Kind: source.KindForm},
	}
	f.tree.Gone["dead"] = true
	f.putSignupForm("f1", "m-1")

	_, err := f.orch.Sync(ctx, f.tr.ID)
	require.NoError(t, err)

	got, err := f.store.GetEventType(ctx, f.tr.ID, et.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"root"}, got.Folders)
	assert.Equal(t, models.StringList{"root"}, got.ConfirmedFolders)
}

type stubReporter struct {
	uri  string
	err  error
	seen int
}

func (r *stubReporter) Refresh(ctx context.Context, tr *models.Troupe, types []*models.EventType, events []*models.Event, members []*models.Member, attendance map[string]map[string]models.AttendanceEntry) (string, error) {
	r.seen++
	return r.uri, r.err
}

func TestSyncReportFailureIsOnlyAWarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rep := &stubReporter{err: fmt.Errorf("quota exceeded")}
	f.orch.reporter = rep

	f.addEventType(t, "Rehearsal", 2, "root")
	f.tree.Folders["root"] = []source.Entry{
		{ID: "f1", Name: "March", Kind: source.KindForm},
	}
	f.putSignupForm("f1", "m-1")

	res, err := f.orch.Sync(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.seen)
	assert.Contains(t, res.ReportWarning, "report sync failed")

	// The ledger itself committed.
	members, err := f.store.ListMembers(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestSyncRecordsReportURI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.orch.reporter = &stubReporter{uri: "memory://doc-1"}

	f.addEventType(t, "Rehearsal", 2, "root")
	f.tree.Folders["root"] = []source.Entry{
		{ID: "f1", Name: "March", Kind: source.KindForm},
	}
	f.putSignupForm("f1", "m-1")

	res, err := f.orch.Sync(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "memory://doc-1", res.ReportURI)

	tr, err := f.store.GetTroupe(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "memory://doc-1", tr.ReportURI)
}

func TestForceUnlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.AcquireSyncLock(ctx, f.tr.ID))
	require.NoError(t, f.orch.ForceUnlock(ctx, f.tr.ID))

	tr, err := f.store.GetTroupe(ctx, f.tr.ID)
	require.NoError(t, err)
	assert.False(t, tr.SyncLock)
}
