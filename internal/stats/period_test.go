package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodOfWeekStartsMonday(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "mid week",
			in:   time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC), // Wednesday
			want: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monday maps to itself",
			in:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday belongs to previous monday",
			in:   time.Date(2025, 3, 16, 23, 59, 59, 0, time.UTC),
			want: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "week spanning a year boundary",
			in:   time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC), // Thursday
			want: time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PeriodOf(Week, tt.in, time.UTC)
			assert.True(t, p.Start.Equal(tt.want), "got %v", p.Start)
			assert.True(t, p.End.Equal(tt.want.AddDate(0, 0, 7)))
			assert.True(t, p.Contains(tt.in))
		})
	}
}

func TestPeriodOfMonthAndYear(t *testing.T) {
	in := time.Date(2025, 3, 31, 22, 0, 0, 0, time.UTC)

	m := PeriodOf(Month, in, time.UTC)
	assert.True(t, m.Start.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, m.End.Equal(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))

	y := PeriodOf(Year, in, time.UTC)
	assert.True(t, y.Start.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, y.End.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPeriodsPartitionTime(t *testing.T) {
	// Every instant belongs to exactly one period: the end of each period is
	// the start of the next, and Contains is half open.
	for _, kind := range []PeriodKind{Week, Month, Year} {
		p := PeriodOf(kind, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), time.UTC)
		next := PeriodOf(kind, p.End, time.UTC)

		assert.True(t, next.Start.Equal(p.End), "kind %s", kind)
		assert.False(t, p.Contains(p.End), "kind %s", kind)
		assert.True(t, p.Contains(p.End.Add(-time.Nanosecond)), "kind %s", kind)
		assert.True(t, next.Contains(p.End), "kind %s", kind)
	}
}

func TestPeriodRespectsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2025-03-10 01:00 UTC is still Sunday evening in New York, so the
	// week boundary lands a week earlier there.
	in := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)

	utcWeek := PeriodOf(Week, in, time.UTC)
	nyWeek := PeriodOf(Week, in, loc)

	assert.True(t, utcWeek.Start.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, nyWeek.Start.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, loc)))
}

func TestPeriodPrevious(t *testing.T) {
	p := PeriodOf(Week, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), time.UTC)

	prev := p.Previous(1)
	assert.True(t, prev.Start.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))
	assert.True(t, prev.End.Equal(p.Start))

	back4 := p.Previous(4)
	assert.True(t, back4.Start.Equal(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)))
}

func TestPeriodLabel(t *testing.T) {
	w := PeriodOf(Week, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, "Week 11, 2025", w.Label())

	m := PeriodOf(Month, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, "March 2025", m.Label())

	y := PeriodOf(Year, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, "2025", y.Label())
}

func TestParsePeriodKind(t *testing.T) {
	for _, valid := range []string{"week", "month", "year"} {
		kind, err := ParsePeriodKind(valid)
		require.NoError(t, err)
		assert.Equal(t, PeriodKind(valid), kind)
	}

	_, err := ParsePeriodKind("fortnight")
	assert.Error(t, err)
}
