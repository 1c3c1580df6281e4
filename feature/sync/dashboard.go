package sync

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"rollcall/core/props"
	"rollcall/feature/troupe/models"
)

// birthdayHorizon bounds the dashboard's upcoming-birthday roll-up.
const birthdayHorizon = 30 * 24 * time.Hour

// ComputeDashboard derives the troupe's aggregate snapshot from the final
// state of a sync pass. It is pure derived data: recomputed in full every
// time, never read back as an input.
func ComputeDashboard(tr *models.Troupe, types []*models.EventType, events []*models.Event, members []*models.Member, attendance map[string]map[string]models.AttendanceEntry, now time.Time) *models.Dashboard {
	d := &models.Dashboard{
		Members:          len(members),
		Events:           len(events),
		PointTotals:      make(map[string]float64, len(tr.PointTypes)),
		PointAverages:    make(map[string]float64, len(tr.PointTypes)),
		EventsByType:     make(map[string]int, len(types)),
		AttendanceByType: make(map[string]float64, len(types)),
		ComputedAt:       now,
	}

	for name := range tr.PointTypes {
		d.PointTotals[name] = 0
	}
	for _, m := range members {
		for name, v := range m.Points {
			if _, tracked := tr.PointTypes[name]; tracked {
				d.PointTotals[name] += v
			}
		}
	}
	for name, total := range d.PointTotals {
		if len(members) > 0 {
			d.PointAverages[name] = total / float64(len(members))
		} else {
			d.PointAverages[name] = 0
		}
	}

	titles := make(map[string]string, len(types))
	for _, t := range types {
		titles[t.ID] = t.Title
		d.EventsByType[t.Title] = 0
	}
	for _, ev := range events {
		if title, ok := titles[ev.EventTypeID]; ok {
			d.EventsByType[title]++
		}
	}

	// Average attendees per event, broken down by type.
	attended := make(map[string]int, len(types))
	for _, entries := range attendance {
		for _, e := range entries {
			if title, ok := titles[e.EventTypeID]; ok {
				attended[title]++
			}
		}
	}
	for title, n := range attended {
		if evs := d.EventsByType[title]; evs > 0 {
			d.AttendanceByType[title] = float64(n) / float64(evs)
		}
	}

	d.UpcomingBirthdays = upcomingBirthdays(members, now)
	return d
}

// upcomingBirthdays lists members whose birthday recurs within the horizon,
// soonest first.
func upcomingBirthdays(members []*models.Member, now time.Time) []models.UpcomingBirthday {
	var out []models.UpcomingBirthday
	for _, m := range members {
		p, ok := m.Properties[models.PropBirthday]
		if !ok {
			continue
		}
		born, ok := props.AsDate(p.Value)
		if !ok || born.IsZero() {
			continue
		}
		next := time.Date(now.Year(), born.Month(), born.Day(), 0, 0, 0, 0, now.Location())
		if next.Before(now.Truncate(24 * time.Hour)) {
			next = next.AddDate(1, 0, 0)
		}
		if next.Sub(now) > birthdayHorizon {
			continue
		}
		out = append(out, models.UpcomingBirthday{
			MemberID: m.ID,
			Name:     displayName(m),
			Date:     next,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].MemberID < out[j].MemberID
	})
	return out
}

func displayName(m *models.Member) string {
	first, _ := m.Properties[models.PropFirstName]
	last, _ := m.Properties[models.PropLastName]
	name := strings.TrimSpace(fmt.Sprintf("%s %s", props.Format(first.Value), props.Format(last.Value)))
	if name == "" {
		return m.Key
	}
	return name
}
