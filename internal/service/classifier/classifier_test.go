package classifier

import (
	"errors"
	"testing"
	"time"

	"medtrack/internal/apperr"
	"medtrack/internal/models"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func med(id int64, status models.Status, due *time.Time) *models.Medication {
	return &models.Medication{
		ID:             id,
		UserID:         1,
		Name:           "Med",
		Dosage:         "1 tab",
		MedicationType: models.MedicationSupplement,
		Schedule:       "morning",
		Status:         status,
		NextDueAt:      due,
	}
}

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestImminentWindow(t *testing.T) {
	cases := []struct {
		name   string
		status models.Status
		due    *time.Time
		want   bool
	}{
		{"in 23h", models.StatusUpcoming, at(23 * time.Hour), true},
		{"in 25h", models.StatusUpcoming, at(25 * time.Hour), false},
		{"exactly now", models.StatusUpcoming, at(0), true},
		{"exactly 24h", models.StatusUpcoming, at(24 * time.Hour), false},
		{"an hour ago", models.StatusUpcoming, at(-time.Hour), false},
		{"taken", models.StatusTaken, at(time.Hour), false},
		{"overdue", models.StatusOverdue, at(time.Hour), false},
		{"no due time", models.StatusUpcoming, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsImminent(med(1, tc.status, tc.due), now); got != tc.want {
				t.Fatalf("IsImminent = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDueTodayUsesCalendarDate(t *testing.T) {
	late := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	tomorrow := time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC)
	earlier := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	nextMonth := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

	if !IsDueToday(med(1, models.StatusUpcoming, &late), now) {
		t.Fatalf("same-day dose not due today")
	}
	if !IsDueToday(med(1, models.StatusUpcoming, &earlier), now) {
		t.Fatalf("earlier same-day dose not due today")
	}
	if IsDueToday(med(1, models.StatusUpcoming, &tomorrow), now) {
		t.Fatalf("next-day dose counted as due today")
	}
	if IsDueToday(med(1, models.StatusUpcoming, &nextMonth), now) {
		t.Fatalf("same day-of-month in another month counted as due today")
	}
	if IsDueToday(med(1, models.StatusTaken, &late), now) {
		t.Fatalf("taken dose counted as due today")
	}

	// tomorrow 00:30 UTC is still the 10th in New York
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	if !IsDueToday(med(1, models.StatusUpcoming, &tomorrow), now.In(ny)) {
		t.Fatalf("date not compared in now's location")
	}
}

func TestLowSupplyBoundary(t *testing.T) {
	cases := []struct {
		supply *int
		want   bool
	}{
		{intPtr(9), true},
		{intPtr(10), false},
		{intPtr(0), true},
		{nil, false},
	}
	for _, tc := range cases {
		m := med(1, models.StatusUpcoming, nil)
		m.SupplyRemaining = tc.supply
		if got := IsLowSupply(m); got != tc.want {
			t.Fatalf("supply %v: got %v want %v", tc.supply, got, tc.want)
		}
	}
}

func TestInteractionIgnoresDetails(t *testing.T) {
	m := med(1, models.StatusUpcoming, nil)
	m.HasInteraction = true
	if !Classify(m, now).Interaction {
		t.Fatalf("interaction flag missing without details")
	}
	details := "grapefruit"
	m.HasInteraction = false
	m.InteractionDetails = &details
	if Classify(m, now).Interaction {
		t.Fatalf("details alone raised the interaction flag")
	}
}

func TestOverdueDependsOnlyOnStatus(t *testing.T) {
	meds := []*models.Medication{
		med(1, models.StatusOverdue, at(48*time.Hour)),
		med(2, models.StatusUpcoming, at(-48*time.Hour)),
	}
	got := Filtered(meds, FilterOverdue, now)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("unexpected overdue bucket: %+v", got)
	}
}

func TestBuildOverview(t *testing.T) {
	low := 3
	m1 := med(1, models.StatusUpcoming, at(10*time.Hour))
	m1.SupplyRemaining = &low
	m2 := med(2, models.StatusUpcoming, at(2*time.Hour))
	m3 := med(3, models.StatusOverdue, nil)
	m4 := med(4, models.StatusTaken, at(time.Hour))
	m4.HasInteraction = true
	m5 := med(5, models.StatusUpcoming, at(72*time.Hour))

	ov := Build([]*models.Medication{m1, m2, m3, m4, m5}, FilterUpcoming, now)
	want := Counts{All: 5, Due: 2, Overdue: 1, Upcoming: 3, Imminent: 2, LowSupply: 1, Interactions: 1}
	if ov.Counts != want {
		t.Fatalf("counts = %+v, want %+v", ov.Counts, want)
	}
	if len(ov.Medications) != 3 || ov.Medications[0].ID != 1 || ov.Medications[2].ID != 5 {
		t.Fatalf("filtered list order wrong: %+v", ov.Medications)
	}
	if len(ov.Imminent) != 2 || ov.Imminent[0].ID != 2 || ov.Imminent[1].ID != 1 {
		t.Fatalf("imminent not sorted by due time: %+v", ov.Imminent)
	}
	if !ov.Medications[0].LowSupply {
		t.Fatalf("low supply flag missing on view")
	}
}

func TestParseFilter(t *testing.T) {
	cases := map[string]Filter{
		"":          FilterAll,
		"all":       FilterAll,
		"due":       FilterDue,
		" Overdue ": FilterOverdue,
		"upcoming":  FilterUpcoming,
	}
	for in, want := range cases {
		got, err := ParseFilter(in)
		if err != nil || got != want {
			t.Fatalf("ParseFilter(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFilter("later"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClassifyCopiesMedication(t *testing.T) {
	supply := 12
	m := med(1, models.StatusUpcoming, at(time.Hour))
	m.SupplyRemaining = &supply
	v := Classify(m, now)
	*v.SupplyRemaining = 1
	if *m.SupplyRemaining != 12 {
		t.Fatalf("view shares pointers with the stored medication")
	}
}

func intPtr(v int) *int { return &v }
