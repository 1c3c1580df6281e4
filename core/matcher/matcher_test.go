package matcher

import (
	"testing"

	"rollcall/core/faults"

	"github.com/stretchr/testify/assert"
)

func TestResolve_ExactNoCase(t *testing.T) {
	matchers := []Matcher{
		{Priority: 1, Expression: "^email$", Condition: ConditionExact, Filters: []string{FilterNoCase}, Property: "Email"},
	}

	assert.Equal(t, 0, Resolve(matchers, "EMAIL"))
	assert.Equal(t, 0, Resolve(matchers, "email"))
	assert.Equal(t, -1, Resolve(matchers, "emails"), "exact condition must not match a longer label")
}

func TestResolve_PriorityOrder(t *testing.T) {
	matchers := []Matcher{
		{Priority: 5, Expression: "name", Condition: ConditionContains, Property: "Last Name"},
		{Priority: 1, Expression: "first", Condition: ConditionContains, Property: "First Name"},
	}

	// Both rules match "first name" but the lower priority wins.
	assert.Equal(t, 1, Resolve(matchers, "first name"))
	assert.Equal(t, 0, Resolve(matchers, "surname"))
	assert.Equal(t, -1, Resolve(matchers, "birthday"))
}

func TestResolve_SkipsBrokenExpression(t *testing.T) {
	matchers := []Matcher{
		{Priority: 1, Expression: "([", Condition: ConditionContains, Property: "Email"},
		{Priority: 2, Expression: "mail", Condition: ConditionContains, Property: "Email"},
	}
	assert.Equal(t, 1, Resolve(matchers, "e-mail address"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		matchers []Matcher
		wantErr  string
	}{
		{
			name: "ok",
			matchers: []Matcher{
				{Priority: 1, Expression: "^email$", Condition: ConditionExact, Property: "Email"},
				{Priority: 2, Expression: "^email$", Condition: ConditionExact, Property: "Email"},
			},
		},
		{
			name: "duplicate expression and priority",
			matchers: []Matcher{
				{Priority: 1, Expression: "^email$", Condition: ConditionExact, Property: "Email"},
				{Priority: 1, Expression: "^email$", Condition: ConditionContains, Property: "Email"},
			},
			wantErr: "duplicate matcher",
		},
		{
			name:     "bad condition",
			matchers: []Matcher{{Priority: 1, Expression: "x", Condition: "fuzzy", Property: "Email"}},
			wantErr:  "unknown matcher condition",
		},
		{
			name:     "bad filter",
			matchers: []Matcher{{Priority: 1, Expression: "x", Condition: ConditionExact, Filters: []string{"reverse"}, Property: "Email"}},
			wantErr:  "unknown matcher filter",
		},
		{
			name:     "no property",
			matchers: []Matcher{{Priority: 1, Expression: "x", Condition: ConditionExact}},
			wantErr:  "no target property",
		},
		{
			name:     "broken regex",
			matchers: []Matcher{{Priority: 1, Expression: "([", Condition: ConditionContains, Property: "Email"}},
			wantErr:  "invalid matcher expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.matchers)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, faults.IsClient(err))
		})
	}
}
