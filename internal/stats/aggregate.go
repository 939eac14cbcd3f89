package stats

import (
	"fitdigest/internal/extract"
	"fitdigest/internal/store"
)

// Totals is the additive summary of a set of activities. EquivalentKm is
// computed per activity before summing, so totals over disjoint sets add.
type Totals struct {
	Activities     int     `json:"activities"`
	DurationS      float64 `json:"duration_s"`
	DistanceM      float64 `json:"distance_m"`
	Calories       int     `json:"calories"`
	Steps          int     `json:"steps"`
	ElevationGainM float64 `json:"elevation_gain_m"`
	EquivalentKm   float64 `json:"equivalent_km"`
}

// Add folds a single activity into the totals.
func (t *Totals) Add(a store.Activity) {
	t.Activities++
	t.DurationS += a.DurationS
	t.DistanceM += a.DistanceM
	t.Calories += a.Calories
	t.Steps += a.Steps
	t.ElevationGainM += a.ElevationGainM
	t.EquivalentKm += equivalentKm(a)
}

// Merge folds another totals value into the receiver.
func (t *Totals) Merge(other Totals) {
	t.Activities += other.Activities
	t.DurationS += other.DurationS
	t.DistanceM += other.DistanceM
	t.Calories += other.Calories
	t.Steps += other.Steps
	t.ElevationGainM += other.ElevationGainM
	t.EquivalentKm += other.EquivalentKm
}

func equivalentKm(a store.Activity) float64 {
	m := extract.Metrics{DistanceM: a.DistanceM, ElevationGainM: a.ElevationGainM}
	return m.EquivalentKm()
}

// AggregateStats holds the totals for one user and period, with a per-type
// breakdown. ByType keys are normalized activity type strings.
type AggregateStats struct {
	Period Period            `json:"period"`
	Totals Totals            `json:"totals"`
	ByType map[string]Totals `json:"by_type"`
}

// A TypeFilter restricts aggregation to a set of normalized activity types.
// A nil or empty filter admits everything.
type TypeFilter map[string]bool

// NewTypeFilter builds a filter from raw type names, normalizing each.
func NewTypeFilter(types []string) TypeFilter {
	if len(types) == 0 {
		return nil
	}
	f := make(TypeFilter, len(types))
	for _, t := range types {
		f[extract.NormalizeType(t)] = true
	}
	return f
}

func (f TypeFilter) admits(activityType string) bool {
	return len(f) == 0 || f[activityType]
}

// Aggregate computes totals over the given activities. Activities outside
// the period or rejected by the filter are skipped, so callers may pass
// broader slices than the period strictly needs.
func Aggregate(period Period, activities []store.Activity, filter TypeFilter) AggregateStats {
	stats := AggregateStats{
		Period: period,
		ByType: map[string]Totals{},
	}
	for _, a := range activities {
		if !period.Contains(a.StartTime) || !filter.admits(a.ActivityType) {
			continue
		}
		stats.Totals.Add(a)

		byType := stats.ByType[a.ActivityType]
		byType.Add(a)
		stats.ByType[a.ActivityType] = byType
	}
	return stats
}
