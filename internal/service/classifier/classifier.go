// Package classifier derives display state for medications from the
// current time. Nothing it computes is stored.
package classifier

import (
	"sort"
	"strings"
	"time"

	"medtrack/internal/apperr"
	"medtrack/internal/models"
)

type Filter string

const (
	FilterAll      Filter = "all"
	FilterDue      Filter = "due"
	FilterOverdue  Filter = "overdue"
	FilterUpcoming Filter = "upcoming"
)

// LowSupplyThreshold is the first supply count that is no longer low.
const LowSupplyThreshold = 10

// ImminentWindow is how far ahead a dose counts as imminent.
const ImminentWindow = 24 * time.Hour

// ParseFilter maps a query value to a Filter. Empty means all.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterDue, FilterOverdue, FilterUpcoming:
		return f, nil
	default:
		return "", apperr.Validationf("Validation error: filter must be one of all, due, overdue, upcoming")
	}
}

// View is a medication with its derived flags.
type View struct {
	models.Medication
	DueToday    bool `json:"dueToday"`
	Imminent    bool `json:"imminent"`
	LowSupply   bool `json:"lowSupply"`
	Interaction bool `json:"interaction"`
}

type Counts struct {
	All          int `json:"all"`
	Due          int `json:"due"`
	Overdue      int `json:"overdue"`
	Upcoming     int `json:"upcoming"`
	Imminent     int `json:"imminent"`
	LowSupply    int `json:"lowSupply"`
	Interactions int `json:"interactions"`
}

type Overview struct {
	Filter      Filter `json:"filter"`
	Medications []View `json:"medications"`
	Imminent    []View `json:"imminent"`
	Counts      Counts `json:"counts"`
}

// Classify computes the flags of one medication at now.
func Classify(m *models.Medication, now time.Time) View {
	v := View{Medication: *m.Clone()}
	v.DueToday = IsDueToday(m, now)
	v.Imminent = IsImminent(m, now)
	v.LowSupply = IsLowSupply(m)
	v.Interaction = m.HasInteraction
	return v
}

// IsDueToday reports an upcoming dose on now's calendar date, in now's location.
func IsDueToday(m *models.Medication, now time.Time) bool {
	if m.Status != models.StatusUpcoming || m.NextDueAt == nil {
		return false
	}
	dy, dm, dd := m.NextDueAt.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return dy == ny && dm == nm && dd == nd
}

// IsImminent reports an upcoming dose in [now, now+ImminentWindow).
func IsImminent(m *models.Medication, now time.Time) bool {
	if m.Status != models.StatusUpcoming || m.NextDueAt == nil {
		return false
	}
	due := *m.NextDueAt
	return !due.Before(now) && due.Before(now.Add(ImminentWindow))
}

func IsLowSupply(m *models.Medication) bool {
	return m.SupplyRemaining != nil && *m.SupplyRemaining < LowSupplyThreshold
}

// Matches reports whether v belongs to the filter bucket.
func (f Filter) Matches(v View) bool {
	switch f {
	case FilterDue:
		return v.DueToday
	case FilterOverdue:
		return v.Status == models.StatusOverdue
	case FilterUpcoming:
		return v.Status == models.StatusUpcoming
	default:
		return true
	}
}

// Filtered classifies meds and keeps those in the bucket, preserving order.
func Filtered(meds []*models.Medication, filter Filter, now time.Time) []View {
	out := make([]View, 0, len(meds))
	for _, m := range meds {
		v := Classify(m, now)
		if filter.Matches(v) {
			out = append(out, v)
		}
	}
	return out
}

// Build returns the filtered list, the imminent section sorted by due time
// and the counts of every bucket.
func Build(meds []*models.Medication, filter Filter, now time.Time) Overview {
	ov := Overview{
		Filter:      filter,
		Medications: make([]View, 0, len(meds)),
		Imminent:    make([]View, 0),
	}
	for _, m := range meds {
		v := Classify(m, now)
		ov.Counts.All++
		if FilterDue.Matches(v) {
			ov.Counts.Due++
		}
		if FilterOverdue.Matches(v) {
			ov.Counts.Overdue++
		}
		if FilterUpcoming.Matches(v) {
			ov.Counts.Upcoming++
		}
		if v.LowSupply {
			ov.Counts.LowSupply++
		}
		if v.Interaction {
			ov.Counts.Interactions++
		}
		if v.Imminent {
			ov.Counts.Imminent++
			ov.Imminent = append(ov.Imminent, v)
		}
		if filter.Matches(v) {
			ov.Medications = append(ov.Medications, v)
		}
	}
	sort.SliceStable(ov.Imminent, func(i, j int) bool {
		a, b := ov.Imminent[i].NextDueAt, ov.Imminent[j].NextDueAt
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return ov.Imminent[i].ID < ov.Imminent[j].ID
	})
	return ov
}
