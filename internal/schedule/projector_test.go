package schedule

import (
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fitness-booking/internal/domain"
)

func mondayClass() *domain.ClassTemplate {
	return &domain.ClassTemplate{
		ID:              primitive.NewObjectID(),
		Name:            "Morning Strength",
		Day:             "Monday",
		StartTime:       "09:00",
		EndTime:         "10:00",
		DurationMinutes: 60,
		Capacity:        2,
		Price:           15,
	}
}

func dates(occs []domain.SessionOccurrence) []string {
	out := make([]string, len(occs))
	for i, o := range occs {
		out[i] = o.Date
	}
	return out
}

func TestProject_FromWednesday(t *testing.T) {
	tpl := mondayClass()
	// Wednesday 2026-10-14 12:00 UTC
	from := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	start, end := Window(from, 4)

	got := dates(Project(tpl, start, end, time.UTC))
	want := []string{"2026-10-19", "2026-10-26", "2026-11-02", "2026-11-09"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Project dates = %v, want %v", got, want)
	}
}

func TestProject_SkipsToday(t *testing.T) {
	tpl := mondayClass()
	// Monday 2026-10-12 07:30, before the 09:00 class.
	from := time.Date(2026, 10, 12, 7, 30, 0, 0, time.UTC)
	start, end := Window(from, 4)

	occs := Project(tpl, start, end, time.UTC)
	if len(occs) != 4 {
		t.Fatalf("got %d occurrences, want 4", len(occs))
	}
	if occs[0].Date != "2026-10-19" {
		t.Errorf("first occurrence = %s, want the following Monday 2026-10-19", occs[0].Date)
	}
	for _, o := range occs {
		if o.Start.Weekday() != time.Monday {
			t.Errorf("occurrence %s falls on %s", o.Date, o.Start.Weekday())
		}
		if o.StartTime != "09:00" || o.EndTime != "10:00" || o.Capacity != 2 {
			t.Errorf("occurrence %s has unexpected details: %+v", o.Date, o)
		}
	}
}

func TestProject_Deterministic(t *testing.T) {
	tpl := mondayClass()
	from := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	start, end := Window(from, 8)

	a := Project(tpl, start, end, time.UTC)
	b := Project(tpl, start, end, time.UTC)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("projecting the same window twice gave different results")
	}
}

func TestProject_DegradesToEmpty(t *testing.T) {
	from := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		tpl   func() *domain.ClassTemplate
		weeks int
	}{
		{"unknown day", func() *domain.ClassTemplate { c := mondayClass(); c.Day = "Caturday"; return c }, 4},
		{"empty day", func() *domain.ClassTemplate { c := mondayClass(); c.Day = ""; return c }, 4},
		{"bad start time", func() *domain.ClassTemplate { c := mondayClass(); c.StartTime = "9am"; return c }, 4},
		{"zero window", mondayClass, 0},
		{"negative window", mondayClass, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Window(from, tt.weeks)
			if got := Project(tt.tpl(), start, end, time.UTC); len(got) != 0 {
				t.Errorf("expected no occurrences, got %v", dates(got))
			}
		})
	}
}

func TestProject_AbbreviatedDayAndLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	tpl := mondayClass()
	tpl.Day = "fri"
	tpl.StartTime = "18:30"
	tpl.EndTime = "19:15"

	// Thursday late evening in New York is already Friday in UTC; the
	// projection must follow the template's wall clock.
	from := time.Date(2026, 10, 16, 2, 0, 0, 0, time.UTC)
	start, end := Window(from, 1)
	occs := Project(tpl, start, end, loc)
	if len(occs) != 1 {
		t.Fatalf("got %d occurrences, want 1", len(occs))
	}
	o := occs[0]
	if o.Date != "2026-10-16" {
		t.Errorf("date = %s, want 2026-10-16", o.Date)
	}
	if o.Start.Location() != loc || o.Start.Hour() != 18 || o.Start.Minute() != 30 {
		t.Errorf("start = %v, want 18:30 New York time", o.Start)
	}
	if o.DurationMinutes != 45 {
		t.Errorf("duration = %d, want 45", o.DurationMinutes)
	}
}

func TestProject_FallsBackToDuration(t *testing.T) {
	tpl := mondayClass()
	tpl.EndTime = ""
	tpl.DurationMinutes = 90

	from := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	start, end := Window(from, 1)
	occs := Project(tpl, start, end, time.UTC)
	if len(occs) != 1 {
		t.Fatalf("got %d occurrences, want 1", len(occs))
	}
	if occs[0].EndTime != "10:30" {
		t.Errorf("end = %s, want 10:30", occs[0].EndTime)
	}
}

func TestOccurrence(t *testing.T) {
	tpl := mondayClass()

	occ, err := Occurrence(tpl, "2026-10-19", time.UTC)
	if err != nil {
		t.Fatalf("Occurrence: %v", err)
	}
	if occ.Key() != (domain.SlotKey{TemplateID: tpl.ID, Date: "2026-10-19"}) {
		t.Errorf("unexpected key %v", occ.Key())
	}

	for _, bad := range []string{"2026-10-20", "19/10/2026", ""} {
		if _, err := Occurrence(tpl, bad, time.UTC); err != ErrInvalidSessionDate {
			t.Errorf("Occurrence(%q) error = %v, want ErrInvalidSessionDate", bad, err)
		}
	}

	tpl.Day = "someday"
	if _, err := Occurrence(tpl, "2026-10-19", time.UTC); err != ErrInvalidTemplate {
		t.Errorf("error = %v, want ErrInvalidTemplate", err)
	}
}
