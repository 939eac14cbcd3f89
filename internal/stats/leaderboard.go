package stats

import (
	"fmt"
	"sort"
)

// A LeaderboardEntry is one user's standing for a period.
type LeaderboardEntry struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Totals      Totals `json:"totals"`
	Rank        int    `json:"rank"`
}

// A Metric selects the primary leaderboard sort key.
type Metric string

const (
	ByActivities Metric = "activities"
	ByDistance   Metric = "distance"
	BySteps      Metric = "steps"
	ByEquivalent Metric = "equivalent"
)

// ParseMetric converts a user-supplied string into a Metric. The empty
// string maps to the default, activity count.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "":
		return ByActivities, nil
	case ByActivities, ByDistance, BySteps, ByEquivalent:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown leaderboard metric %q", s)
}

func (m Metric) value(t Totals) float64 {
	switch m {
	case ByDistance:
		return t.DistanceM
	case BySteps:
		return float64(t.Steps)
	case ByEquivalent:
		return t.EquivalentKm
	default:
		return float64(t.Activities)
	}
}

// Rank orders entries by activity count, then distance, both descending,
// with user ID as the final ascending tie break so the ordering is
// deterministic. Ranks are assigned 1-based after sorting; entries that tie
// on every sort key still get distinct ranks in ID order.
func Rank(entries []LeaderboardEntry) []LeaderboardEntry {
	return RankBy(entries, ByActivities)
}

// RankBy ranks by the chosen metric descending, then total distance
// descending, then user ID ascending.
func RankBy(entries []LeaderboardEntry, metric Metric) []LeaderboardEntry {
	ranked := make([]LeaderboardEntry, len(entries))
	copy(ranked, entries)

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if av, bv := metric.value(a.Totals), metric.value(b.Totals); av != bv {
			return av > bv
		}
		if a.Totals.DistanceM != b.Totals.DistanceM {
			return a.Totals.DistanceM > b.Totals.DistanceM
		}
		return a.UserID < b.UserID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
