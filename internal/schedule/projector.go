// Package schedule holds the pure scheduling core: projecting class
// templates onto the calendar, counting seats, and the booking state
// machine. Nothing here performs I/O.
package schedule

import (
	"time"

	"alcyxob/fitness-booking/internal/domain"
)

// Window returns the booking horizon starting at from and spanning weeks
// whole weeks. A non-positive weeks value yields an empty window.
func Window(from time.Time, weeks int) (time.Time, time.Time) {
	if weeks <= 0 {
		return from, from
	}
	return from, from.AddDate(0, 0, 7*weeks)
}

// Project lists the occurrences of tpl whose calendar date falls after
// from's date and on or before to's date, in chronological order.
//
// The current day is never offered, even if the class starts later today,
// so a session cannot begin while a checkout is still in flight.
// A template with an unknown day or malformed times yields no sessions.
func Project(tpl *domain.ClassTemplate, from, to time.Time, loc *time.Location) []domain.SessionOccurrence {
	if tpl == nil || !to.After(from) {
		return nil
	}
	day, ok := tpl.Weekday()
	if !ok {
		return nil
	}
	start, end, ok := parseClocks(tpl)
	if !ok {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	first := midnight(from.In(loc)).AddDate(0, 0, 1)
	offset := (int(day) - int(first.Weekday()) + 7) % 7
	last := midnight(to.In(loc))

	var out []domain.SessionOccurrence
	for date := first.AddDate(0, 0, offset); !date.After(last); date = date.AddDate(0, 0, 7) {
		out = append(out, buildOccurrence(tpl, date, day, start, end, loc))
	}
	return out
}

// Occurrence builds the single occurrence of tpl on the given calendar date.
// The date must fall on the template's weekday.
func Occurrence(tpl *domain.ClassTemplate, date string, loc *time.Location) (domain.SessionOccurrence, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, ok := tpl.Weekday()
	if !ok {
		return domain.SessionOccurrence{}, ErrInvalidTemplate
	}
	start, end, ok := parseClocks(tpl)
	if !ok {
		return domain.SessionOccurrence{}, ErrInvalidTemplate
	}
	d, err := time.ParseInLocation(domain.DateLayout, date, loc)
	if err != nil || d.Weekday() != day {
		return domain.SessionOccurrence{}, ErrInvalidSessionDate
	}
	return buildOccurrence(tpl, d, day, start, end, loc), nil
}

type clock struct{ hour, minute int }

func parseClocks(tpl *domain.ClassTemplate) (start, end clock, ok bool) {
	s, err := time.Parse(domain.ClockLayout, tpl.StartTime)
	if err != nil {
		return start, end, false
	}
	start = clock{s.Hour(), s.Minute()}
	if e, err := time.Parse(domain.ClockLayout, tpl.EndTime); err == nil {
		end = clock{e.Hour(), e.Minute()}
	} else if tpl.DurationMinutes <= 0 {
		return start, end, false
	} else {
		end = clock{-1, -1}
	}
	return start, end, true
}

func buildOccurrence(tpl *domain.ClassTemplate, date time.Time, day time.Weekday, start, end clock, loc *time.Location) domain.SessionOccurrence {
	y, m, d := date.Date()
	startAt := time.Date(y, m, d, start.hour, start.minute, 0, 0, loc)

	// End time wins when it is on the same day after the start; otherwise
	// fall back to the declared duration.
	endAt := startAt.Add(time.Duration(tpl.DurationMinutes) * time.Minute)
	if end.hour >= 0 {
		if e := time.Date(y, m, d, end.hour, end.minute, 0, 0, loc); e.After(startAt) {
			endAt = e
		}
	}

	return domain.SessionOccurrence{
		TemplateID:      tpl.ID,
		Date:            startAt.Format(domain.DateLayout),
		Day:             day,
		StartTime:       startAt.Format(domain.ClockLayout),
		EndTime:         endAt.Format(domain.ClockLayout),
		DurationMinutes: int(endAt.Sub(startAt) / time.Minute),
		Capacity:        tpl.Capacity,
		Start:           startAt,
		End:             endAt,
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
