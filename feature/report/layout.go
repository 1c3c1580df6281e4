package report

import (
	"sort"
	"strconv"

	"rollcall/core/props"
	"rollcall/feature/troupe/models"
)

// attendedMark is the cell value marking attendance in an event column.
const attendedMark = "x"

// widthTiers maps the longest rendered value of a column onto a display
// width. Tiers keep the layout stable: a one-character change in some cell
// does not reflow the whole document.
var widthTiers = []struct {
	maxLen int
	width  int
}{
	{8, 80},
	{16, 120},
	{24, 160},
	{40, 240},
}

const widthMax = 320

func widthFor(longest int) int {
	for _, t := range widthTiers {
		if longest <= t.maxLen {
			return t.width
		}
	}
	return widthMax
}

// BuildDocument renders the desired report state from the ledger: an event
// type summary, an event listing, and the audience matrix with one column
// per property, point type and event.
func BuildDocument(tr *models.Troupe, types []*models.EventType, events []*models.Event, members []*models.Member, attendance map[string]map[string]models.AttendanceEntry) *Document {
	doc := &Document{Title: tr.Name}
	doc.Sections[SectionEventTypes] = buildEventTypes(types, events)
	doc.Sections[SectionEvents] = buildEvents(events)
	doc.Sections[SectionAudience] = buildAudience(tr, events, members, attendance)
	return doc
}

func buildEventTypes(types []*models.EventType, events []*models.Event) *Table {
	counts := make(map[string]int, len(types))
	for _, ev := range events {
		counts[ev.EventTypeID]++
	}
	t := &Table{Title: "Event Types", Header: headerRow("Title", "Point Value", "Events", "Folders")}
	for _, et := range types {
		t.Rows = append(t.Rows, Row{
			{Value: et.Title},
			{Value: formatNumber(et.Value)},
			{Value: strconv.Itoa(counts[et.ID])},
			{Value: strconv.Itoa(len(et.Folders))},
		})
	}
	t.Widths = measure(t)
	return t
}

func buildEvents(events []*models.Event) *Table {
	ordered := orderEvents(events)
	t := &Table{Title: "Events", Header: headerRow("Title", "Type", "Date", "Point Value", "Source")}
	for _, ev := range ordered {
		date := ""
		if !ev.StartDate.IsZero() {
			date = props.Format(ev.StartDate)
		}
		t.Rows = append(t.Rows, Row{
			{Value: ev.Title},
			{Value: ev.EventTypeTitle},
			{Value: date},
			{Value: formatNumber(ev.Value)},
			{Value: ev.Source.URI},
		})
	}
	t.Widths = measure(t)
	return t
}

func buildAudience(tr *models.Troupe, events []*models.Event, members []*models.Member, attendance map[string]map[string]models.AttendanceEntry) *Table {
	propCols := orderProperties(tr.Properties)
	pointCols := orderPointTypes(tr.PointTypes)
	eventCols := orderEvents(events)

	header := make(Row, 0, len(propCols)+len(pointCols)+len(eventCols))
	for _, name := range propCols {
		header = append(header, Cell{Value: name, Bold: true})
	}
	for _, name := range pointCols {
		header = append(header, Cell{Value: name, Bold: true})
	}
	for _, ev := range eventCols {
		header = append(header, Cell{Value: ev.Title, Bold: true})
	}

	ordered := make([]*models.Member, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Key < ordered[j].Key })

	t := &Table{Title: "Audience", Header: header}
	for _, m := range ordered {
		row := make(Row, 0, len(header))
		for _, name := range propCols {
			row = append(row, Cell{Value: props.Format(m.Properties[name].Value)})
		}
		for _, name := range pointCols {
			row = append(row, Cell{Value: formatNumber(m.Points[name])})
		}
		entries := attendance[m.ID]
		for _, ev := range eventCols {
			mark := ""
			if _, attended := entries[ev.ID]; attended {
				mark = attendedMark
			}
			row = append(row, Cell{Value: mark})
		}
		t.Rows = append(t.Rows, row)
	}
	t.Widths = measure(t)
	return t
}

// orderProperties returns the audience column order: the baseline properties
// in their canonical order, then every custom property sorted by name.
func orderProperties(schema models.PropertySchema) []string {
	baseline := []string{
		models.PropMemberID,
		models.PropFirstName,
		models.PropLastName,
		models.PropEmail,
		models.PropBirthday,
	}
	out := make([]string, 0, len(schema))
	for _, name := range baseline {
		if _, ok := schema[name]; ok {
			out = append(out, name)
		}
	}
	var extras []string
	for name := range schema {
		if !models.IsBaselineProperty(name) {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	return append(out, extras...)
}

// orderPointTypes puts Total first, then the rest sorted by name.
func orderPointTypes(points models.PointTypes) []string {
	var out []string
	if _, ok := points[models.PointTotal]; ok {
		out = append(out, models.PointTotal)
	}
	var rest []string
	for name := range points {
		if name != models.PointTotal {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// orderEvents sorts by start date, then title, then ID for a total order.
func orderEvents(events []*models.Event) []*models.Event {
	out := make([]*models.Event, len(events))
	copy(out, events)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
	return out
}

func headerRow(names ...string) Row {
	row := make(Row, 0, len(names))
	for _, n := range names {
		row = append(row, Cell{Value: n, Bold: true})
	}
	return row
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// measure derives the column widths of a table from its longest values.
func measure(t *Table) []int {
	widths := make([]int, t.Columns())
	for i, c := range t.Header {
		widths[i] = len(c.Value)
	}
	for _, row := range t.Rows {
		for i, c := range row {
			if i < len(widths) && len(c.Value) > widths[i] {
				widths[i] = len(c.Value)
			}
		}
	}
	for i, longest := range widths {
		widths[i] = widthFor(longest)
	}
	return widths
}
