package props

import (
	"strconv"
	"strings"
	"time"
)

// BaseType is the closed set of member property base types.
type BaseType string

const (
	TypeString  BaseType = "string"
	TypeNumber  BaseType = "number"
	TypeBoolean BaseType = "boolean"
	TypeDate    BaseType = "date"
)

// Tag encodes a property's base type together with its optionality.
type Tag struct {
	// Base is the property's base type.
	Base BaseType `json:"base"`
	// Required marks the property as mandatory on every member record.
	Required bool `json:"required"`
}

// Valid reports whether the tag carries a known base type.
func (t Tag) Valid() bool {
	switch t.Base {
	case TypeString, TypeNumber, TypeBoolean, TypeDate:
		return true
	}
	return false
}

// dateLayouts is the fixed allow-list of accepted date encodings, tried in
// order. First match wins; no locale-dependent parsing.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// trueWords and falseWords are the fixed textual boolean encodings,
// compared case-insensitively.
var (
	trueWords  = []string{"true", "yes", "y", "1"}
	falseWords = []string{"false", "no", "n", "0"}
)

// Parse converts a raw textual value into a typed value for the given tag.
// The returned value is one of string, float64, bool or time.Time. ok is
// false when the raw text is not representable as the tag's base type; the
// caller drops that single field assignment, not the whole record.
func Parse(raw string, tag Tag) (any, bool) {
	raw = strings.TrimSpace(raw)

	switch tag.Base {
	case TypeString:
		return raw, true

	case TypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		return n, true

	case TypeBoolean:
		lower := strings.ToLower(raw)
		for _, w := range trueWords {
			if lower == w {
				return true, true
			}
		}
		for _, w := range falseWords {
			if lower == w {
				return false, true
			}
		}
		return nil, false

	case TypeDate:
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, raw); err == nil {
				return d, true
			}
		}
		return nil, false
	}

	return nil, false
}

// IsValid reports whether an already-typed value matches the tag's base type.
// A nil value is only valid for optional tags.
func IsValid(value any, tag Tag) bool {
	if value == nil {
		return !tag.Required
	}

	switch tag.Base {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeDate:
		switch v := value.(type) {
		case time.Time:
			return true
		case string:
			// Values round-tripped through JSON come back as strings.
			_, ok := Parse(v, tag)
			return ok
		}
		return false
	}
	return false
}

// DefaultValue returns the zero value for the tag's base type. ok is false
// for required tags, which have no usable default.
func DefaultValue(tag Tag) (any, bool) {
	if tag.Required {
		return nil, false
	}
	switch tag.Base {
	case TypeString:
		return "", true
	case TypeNumber:
		return float64(0), true
	case TypeBoolean:
		return false, true
	case TypeDate:
		return time.Time{}, true
	}
	return nil, false
}

// Format renders a typed value back to its canonical textual form. Dates use
// the first allow-listed layout, numbers trim trailing zeros.
func Format(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(dateLayouts[0])
	}
	return ""
}

// AsDate coerces a value to a time.Time if it is a date in any stored
// representation (time.Time in memory, string after a JSON round trip).
func AsDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		parsed, ok := Parse(v, Tag{Base: TypeDate})
		if !ok {
			return time.Time{}, false
		}
		return parsed.(time.Time), true
	}
	return time.Time{}, false
}
