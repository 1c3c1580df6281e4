package sync

import (
	"context"
	"testing"
	"time"

	"rollcall/core/matcher"
	"rollcall/core/props"
	"rollcall/core/source"
	"rollcall/core/source/sourcetest"
	"rollcall/feature/troupe/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testTroupe() *models.Troupe {
	return &models.Troupe{
		ID:         "tr",
		Name:       "Test Troupe",
		Properties: models.BaselineSchema(),
		PointTypes: models.BaselinePoints(),
		Matchers: []matcher.Matcher{
			{Priority: 1, Expression: "member id", Condition: matcher.ConditionExact, Filters: []string{matcher.FilterNoCase}, Property: models.PropMemberID},
			{Priority: 2, Expression: "e-?mail", Condition: matcher.ConditionExact, Filters: []string{matcher.FilterNoCase}, Property: models.PropEmail},
			{Priority: 3, Expression: "first", Condition: matcher.ConditionContains, Filters: []string{matcher.FilterNoCase}, Property: models.PropFirstName},
		},
	}
}

func formEvent(uri string) *models.Event {
	return &models.Event{
		ID:          "ev-" + uri,
		TroupeID:    "tr",
		Title:       uri,
		Source:      source.Ref{Kind: source.KindForm, URI: uri},
		Value:       1,
		ValueSource: models.ValueManual,
		Fields:      models.FieldMap{},
	}
}

func TestFormExplorerResolvesFieldsAndFoldsResponses(t *testing.T) {
	forms := sourcetest.NewForms()
	forms.Put("f1", &sourcetest.Form{
		Questions: []source.Question{
			{FieldID: "q1", Label: "Member ID", Widget: source.WidgetText},
			{FieldID: "q2", Label: "EMAIL", Widget: source.WidgetText},
			{FieldID: "q3", Label: "Favorite color", Widget: source.WidgetText},
		},
		Responses: []source.Response{
			{Answers: map[string][]string{"q1": {"m-1"}, "q2": {"ada@example.com"}}, Submitted: "2025-03-01T10:00:00Z"},
			{Answers: map[string][]string{"q1": {"m-2"}}, Submitted: "2025-03-02T09:00:00Z"},
		},
	})

	tr := testTroupe()
	ev := formEvent("f1")
	aud := NewAudience(tr, nil)
	x := NewFormExplorer(forms, zap.NewNop())

	require.NoError(t, x.Explore(context.Background(), tr, ev, aud))

	assert.Equal(t, models.PropMemberID, ev.Fields["q1"].Property)
	assert.Equal(t, models.PropEmail, ev.Fields["q2"].Property)
	assert.Empty(t, ev.Fields["q3"].Property)
	require.NotNil(t, ev.ConfirmedSource)
	assert.Equal(t, ev.Source, *ev.ConfirmedSource)

	// Start date defaulted from the earliest response.
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), ev.StartDate)

	obs := aud.Snapshot()
	require.Len(t, obs, 2)
	ada := obs["m-1"].Member
	assert.Equal(t, "ada@example.com", ada.Properties[models.PropEmail].Value)
	assert.Equal(t, 1.0, ada.Points[models.PointTotal])
}

func TestFormExplorerWithoutMemberIDSkipsResponses(t *testing.T) {
	forms := sourcetest.NewForms()
	forms.Put("f1", &sourcetest.Form{
		Questions: []source.Question{{FieldID: "q1", Label: "Favorite color", Widget: source.WidgetText}},
		Responses: []source.Response{{Answers: map[string][]string{"q1": {"teal"}}}},
	})

	tr := testTroupe()
	ev := formEvent("f1")
	aud := NewAudience(tr, nil)

	require.NoError(t, NewFormExplorer(forms, zap.NewNop()).Explore(context.Background(), tr, ev, aud))
	assert.Empty(t, aud.Snapshot())
	// Field labels were still stored for later mapping.
	assert.Equal(t, "Favorite color", ev.Fields["q1"].Label)
}

func TestFormExplorerPrunesVanishedFields(t *testing.T) {
	forms := sourcetest.NewForms()
	forms.Put("f1", &sourcetest.Form{
		Questions: []source.Question{{FieldID: "q1", Label: "Member ID", Widget: source.WidgetText}},
	})

	tr := testTroupe()
	ev := formEvent("f1")
	ev.Fields["stale"] = models.FieldMapping{Label: "Old Field", Property: models.PropEmail}

	require.NoError(t, NewFormExplorer(forms, zap.NewNop()).Explore(context.Background(), tr, ev, aud(t, tr)))
	_, kept := ev.Fields["stale"]
	assert.False(t, kept)
}

func aud(t *testing.T, tr *models.Troupe) *Audience {
	t.Helper()
	return NewAudience(tr, nil)
}

func TestResolveFieldsKeepsManualAndPinnedMappings(t *testing.T) {
	tr := testTroupe()
	ev := formEvent("f1")
	// Manual mapping: no matcher priority recorded.
	ev.Fields["q1"] = models.FieldMapping{Label: "whatever", Property: models.PropLastName}
	// Pinned matcher mapping survives matcher changes.
	prio := 2
	ev.Fields["q2"] = models.FieldMapping{Label: "EMAIL", Property: models.PropEmail, MatcherPriority: &prio, Pinned: true}
	// Unpinned matcher mapping is re-resolved.
	ev.Fields["q3"] = models.FieldMapping{Label: "first name", Property: models.PropFirstName, MatcherPriority: &prio}

	tr.Matchers = tr.Matchers[:2] // drop the "first" matcher

	resolveFields(tr, ev, []fieldDesc{
		{ID: "q1", Label: "whatever", Widget: source.WidgetText},
		{ID: "q2", Label: "EMAIL", Widget: source.WidgetText},
		{ID: "q3", Label: "first name", Widget: source.WidgetText},
	})

	assert.Equal(t, models.PropLastName, ev.Fields["q1"].Property)
	assert.Equal(t, models.PropEmail, ev.Fields["q2"].Property)
	assert.Empty(t, ev.Fields["q3"].Property)
}

func TestWidgetCompatibility(t *testing.T) {
	cases := []struct {
		name string
		f    fieldDesc
		base props.BaseType
		want bool
	}{
		{"text feeds anything", fieldDesc{Widget: source.WidgetText}, props.TypeDate, true},
		{"scale feeds number", fieldDesc{Widget: source.WidgetScale}, props.TypeNumber, true},
		{"scale rejects date", fieldDesc{Widget: source.WidgetScale}, props.TypeDate, false},
		{"date feeds date", fieldDesc{Widget: source.WidgetDate}, props.TypeDate, true},
		{"date rejects boolean", fieldDesc{Widget: source.WidgetDate}, props.TypeBoolean, false},
		{"boolean choice", fieldDesc{Widget: source.WidgetChoice, Options: []string{"Yes", "No"}}, props.TypeBoolean, true},
		{"mixed choice rejects boolean", fieldDesc{Widget: source.WidgetChoice, Options: []string{"Yes", "Maybe"}}, props.TypeBoolean, false},
		{"single choice rejects boolean", fieldDesc{Widget: source.WidgetChoice, Options: []string{"yes"}}, props.TypeBoolean, false},
		{"three-way choice rejects boolean", fieldDesc{Widget: source.WidgetChoice, Options: []string{"yes", "no", "true"}}, props.TypeBoolean, false},
		{"same-polarity choice rejects boolean", fieldDesc{Widget: source.WidgetChoice, Options: []string{"yes", "true"}}, props.TypeBoolean, false},
		{"numeric choice feeds number", fieldDesc{Widget: source.WidgetChoice, Options: []string{"1", "2.5"}}, props.TypeNumber, true},
		{"choice rejects date", fieldDesc{Widget: source.WidgetChoice, Options: []string{"2025-01-01"}}, props.TypeDate, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, widgetFits(tc.f, tc.base))
		})
	}
}

func TestApplyRowDropsUnparseableValuesNotTheRow(t *testing.T) {
	tr := testTroupe()
	tr.Properties["Age"] = props.Tag{Base: props.TypeNumber}
	ev := formEvent("f1")
	ev.Fields["q1"] = models.FieldMapping{Label: "Member ID", Property: models.PropMemberID}
	ev.Fields["q2"] = models.FieldMapping{Label: "Age", Property: "Age"}

	a := NewAudience(tr, nil)
	applyRow(tr, ev, a, map[string]string{"q1": "m-1", "q2": "not a number"})

	obs := a.Snapshot()
	require.Len(t, obs, 1)
	_, hasAge := obs["m-1"].Member.Properties["Age"]
	assert.False(t, hasAge)
}

func TestSheetExplorerMapsColumnsByPosition(t *testing.T) {
	sheets := sourcetest.NewSheets()
	sheets.Data["s1"] = [][]string{
		{"Member ID", "Email", "Notes"},
		{"m-1", "ada@example.com", "front row"},
		{"", "ghost@example.com", ""},
	}

	tr := testTroupe()
	ev := &models.Event{
		ID:          "ev-s1",
		TroupeID:    "tr",
		Title:       "s1",
		Source:      source.Ref{Kind: source.KindSheet, URI: "s1"},
		Value:       2,
		ValueSource: models.ValueManual,
		Fields:      models.FieldMap{},
	}
	a := NewAudience(tr, nil)

	require.NoError(t, NewSheetExplorer(sheets, zap.NewNop()).Explore(context.Background(), tr, ev, a))

	assert.Equal(t, models.PropMemberID, ev.Fields["c0"].Property)
	assert.Equal(t, models.PropEmail, ev.Fields["c1"].Property)

	obs := a.Snapshot()
	// The row without a member id contributed nothing.
	require.Len(t, obs, 1)
	assert.Equal(t, 2.0, obs["m-1"].Member.Points[models.PointTotal])
}
