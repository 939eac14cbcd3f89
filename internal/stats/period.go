// Package stats turns stored activities into period aggregates,
// comparisons against historical baselines, and group leaderboards.
package stats

import (
	"fmt"
	"time"
)

// PeriodKind selects the bucketing granularity.
type PeriodKind string

const (
	Week  PeriodKind = "week"
	Month PeriodKind = "month"
	Year  PeriodKind = "year"
)

// ParsePeriodKind converts a user-supplied string into a PeriodKind.
func ParsePeriodKind(s string) (PeriodKind, error) {
	switch PeriodKind(s) {
	case Week, Month, Year:
		return PeriodKind(s), nil
	}
	return "", fmt.Errorf("unknown period kind %q (want week, month or year)", s)
}

// A Period is a half-open interval [Start, End) in a fixed location.
// Any instant belongs to exactly one period of a given kind.
type Period struct {
	Kind  PeriodKind `json:"kind"`
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
}

// PeriodOf returns the period of the given kind containing t, evaluated in
// loc. Weeks start on Monday at 00:00.
func PeriodOf(kind PeriodKind, t time.Time, loc *time.Location) Period {
	start := periodStart(kind, t.In(loc))
	return Period{Kind: kind, Start: start, End: advance(kind, start, 1)}
}

func periodStart(kind PeriodKind, t time.Time) time.Time {
	switch kind {
	case Week:
		return mondayOf(t)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case Year:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	}
	panic(fmt.Sprintf("invalid period kind %q", kind))
}

func advance(kind PeriodKind, start time.Time, n int) time.Time {
	switch kind {
	case Week:
		return start.AddDate(0, 0, 7*n)
	case Month:
		return start.AddDate(0, n, 0)
	case Year:
		return start.AddDate(n, 0, 0)
	}
	panic(fmt.Sprintf("invalid period kind %q", kind))
}

// mondayOf truncates t to the most recent Monday at midnight.
func mondayOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// Previous returns the period n steps before p. n must be positive.
func (p Period) Previous(n int) Period {
	start := advance(p.Kind, p.Start, -n)
	return Period{Kind: p.Kind, Start: start, End: advance(p.Kind, start, 1)}
}

// Contains reports whether t falls inside the half-open interval.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Label renders a human-readable period label: ISO week number for weeks,
// month name for months, the year for years.
func (p Period) Label() string {
	switch p.Kind {
	case Week:
		year, week := p.Start.ISOWeek()
		return fmt.Sprintf("Week %d, %d", week, year)
	case Month:
		return p.Start.Format("January 2006")
	default:
		return p.Start.Format("2006")
	}
}

// elapsedSince counts the periods of p.Kind from the period containing
// anchor up to (and excluding) p. A target in the anchor's own period
// counts as zero elapsed periods.
func (p Period) elapsedSince(anchor time.Time) int {
	cursor := periodStart(p.Kind, anchor.In(p.Start.Location()))
	n := 0
	for cursor.Before(p.Start) {
		cursor = advance(p.Kind, cursor, 1)
		n++
	}
	return n
}
