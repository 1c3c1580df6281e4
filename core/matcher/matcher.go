package matcher

import (
	"fmt"
	"regexp"
	"sort"

	"rollcall/core/faults"
)

// Condition determines how a matcher's expression is applied to a label.
type Condition string

const (
	// ConditionContains matches when the expression occurs anywhere in the label.
	ConditionContains Condition = "contains"
	// ConditionExact anchors the expression at both ends of the label.
	ConditionExact Condition = "exact"
)

// FilterNoCase makes a matcher case-insensitive.
const FilterNoCase = "nocase"

// Matcher maps external field labels to a member property by rule.
type Matcher struct {
	// Priority orders matchers within a troupe; lower runs first.
	Priority int `json:"priority"`
	// Expression is the regular expression applied to the field label.
	Expression string `json:"expression"`
	// Condition selects contains or exact matching.
	Condition Condition `json:"condition"`
	// Filters holds modifier flags, currently only "nocase".
	Filters []string `json:"filters,omitempty"`
	// Property is the target member property name.
	Property string `json:"property"`
}

// compile builds the effective regexp for the matcher.
func (m Matcher) compile() (*regexp.Regexp, error) {
	expr := m.Expression
	if m.Condition == ConditionExact {
		expr = "^(?:" + expr + ")$"
	}
	for _, f := range m.Filters {
		if f == FilterNoCase {
			expr = "(?i)" + expr
		}
	}
	return regexp.Compile(expr)
}

// Resolve returns the index of the first matcher whose rule matches the
// label, evaluating in ascending priority order. It returns -1 when no
// matcher applies. Matchers that fail to compile are skipped.
func Resolve(matchers []Matcher, label string) int {
	order := make([]int, len(matchers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return matchers[order[a]].Priority < matchers[order[b]].Priority
	})

	for _, idx := range order {
		re, err := matchers[idx].compile()
		if err != nil {
			continue
		}
		if re.MatchString(label) {
			return idx
		}
	}
	return -1
}

// Validate checks a troupe's matcher list: expressions must compile,
// conditions must be known, and (expression, priority) pairs must be unique.
// Violations are ClientErrors.
func Validate(matchers []Matcher) error {
	seen := make(map[string]struct{}, len(matchers))
	for _, m := range matchers {
		switch m.Condition {
		case ConditionContains, ConditionExact:
		default:
			return faults.Client("unknown matcher condition %q", m.Condition)
		}
		for _, f := range m.Filters {
			if f != FilterNoCase {
				return faults.Client("unknown matcher filter %q", f)
			}
		}
		if m.Property == "" {
			return faults.Client("matcher %q has no target property", m.Expression)
		}
		if _, err := m.compile(); err != nil {
			return faults.Client("invalid matcher expression %q: %v", m.Expression, err)
		}
		key := fmt.Sprintf("%s\x00%d", m.Expression, m.Priority)
		if _, dup := seen[key]; dup {
			return faults.Client("duplicate matcher (%q, priority %d)", m.Expression, m.Priority)
		}
		seen[key] = struct{}{}
	}
	return nil
}
