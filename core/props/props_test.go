package props

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		tag  Tag
		want any
		ok   bool
	}{
		{name: "string passthrough", raw: "Alice", tag: Tag{Base: TypeString}, want: "Alice", ok: true},
		{name: "string trims whitespace", raw: "  Bob ", tag: Tag{Base: TypeString}, want: "Bob", ok: true},
		{name: "number", raw: "42.5", tag: Tag{Base: TypeNumber}, want: 42.5, ok: true},
		{name: "number garbage", raw: "forty", tag: Tag{Base: TypeNumber}, ok: false},
		{name: "bool yes", raw: "Yes", tag: Tag{Base: TypeBoolean}, want: true, ok: true},
		{name: "bool zero", raw: "0", tag: Tag{Base: TypeBoolean}, want: false, ok: true},
		{name: "bool maybe", raw: "maybe", tag: Tag{Base: TypeBoolean}, ok: false},
		{name: "date iso", raw: "2024-09-14", tag: Tag{Base: TypeDate}, want: time.Date(2024, 9, 14, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "date us slash", raw: "9/14/2024", tag: Tag{Base: TypeDate}, want: time.Date(2024, 9, 14, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "date long form", raw: "September 14, 2024", tag: Tag{Base: TypeDate}, want: time.Date(2024, 9, 14, 0, 0, 0, 0, time.UTC), ok: true},
		{name: "date nonsense", raw: "the 14th", tag: Tag{Base: TypeDate}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.raw, tt.tag)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("x", Tag{Base: TypeString}))
	assert.False(t, IsValid(12.0, Tag{Base: TypeString}))
	assert.True(t, IsValid(12.0, Tag{Base: TypeNumber}))
	assert.True(t, IsValid(true, Tag{Base: TypeBoolean}))
	assert.True(t, IsValid(time.Now(), Tag{Base: TypeDate}))

	// JSON round trips store dates as strings; those remain valid.
	assert.True(t, IsValid("2024-01-02", Tag{Base: TypeDate}))
	assert.False(t, IsValid("not a date", Tag{Base: TypeDate}))

	// nil is only valid for optional tags.
	assert.True(t, IsValid(nil, Tag{Base: TypeString}))
	assert.False(t, IsValid(nil, Tag{Base: TypeString, Required: true}))
}

func TestDefaultValue(t *testing.T) {
	v, ok := DefaultValue(Tag{Base: TypeNumber})
	assert.True(t, ok)
	assert.Equal(t, float64(0), v)

	_, ok = DefaultValue(Tag{Base: TypeNumber, Required: true})
	assert.False(t, ok, "required tags have no default")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "3.5", Format(3.5))
	assert.Equal(t, "3", Format(3.0))
	assert.Equal(t, "true", Format(true))
	assert.Equal(t, "2024-09-14", Format(time.Date(2024, 9, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", Format(nil))
}

func TestAsDate(t *testing.T) {
	d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	got, ok := AsDate(d)
	assert.True(t, ok)
	assert.Equal(t, d, got)

	got, ok = AsDate("2024-05-01")
	assert.True(t, ok)
	assert.Equal(t, d, got)

	_, ok = AsDate(42.0)
	assert.False(t, ok)
}
