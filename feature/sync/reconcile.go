package sync

import (
	"sort"

	"rollcall/core/props"
	"rollcall/feature/troupe/models"
)

// Reconciled is the final outcome of a sync pass: the member rows to upsert,
// the member IDs to retire, and each surviving member's rebuilt attendance.
type Reconciled struct {
	Save   []*models.Member
	Delete []string
	// Attendance maps member ID to the full attendance record to persist.
	Attendance map[string]map[string]models.AttendanceEntry
	// Created counts members that did not exist before this pass.
	Created int
}

// Finalize turns the audience into a persistable outcome. A member that no
// event observed this pass and that carries no overridden property is
// retired; everyone else survives with missing optional properties filled
// from their type defaults. Ordering is made deterministic by member key.
func Finalize(tr *models.Troupe, aud *Audience, existing []*models.Member) *Reconciled {
	known := make(map[string]bool, len(existing))
	for _, m := range existing {
		known[m.ID] = true
	}

	out := &Reconciled{Attendance: make(map[string]map[string]models.AttendanceEntry)}

	obs := aud.Snapshot()
	keys := make([]string, 0, len(obs))
	for k := range obs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		o := obs[key]
		if !o.Seen && !o.Member.HasOverride() {
			if known[o.Member.ID] {
				out.Delete = append(out.Delete, o.Member.ID)
			}
			continue
		}
		if _, set := o.Member.Properties[models.PropMemberID]; !set {
			o.Member.Properties[models.PropMemberID] = models.PropertyValue{Value: o.Member.Key}
		}
		for name, tag := range tr.Properties {
			if _, set := o.Member.Properties[name]; set {
				continue
			}
			if def, ok := props.DefaultValue(tag); ok {
				o.Member.Properties[name] = models.PropertyValue{Value: def}
			}
		}
		if !known[o.Member.ID] {
			out.Created++
		}
		out.Save = append(out.Save, o.Member)
		out.Attendance[o.Member.ID] = o.Attendance
	}
	return out
}
