// Package digest renders a group's weekly stats into a short shareable
// text block with totals, top performers and achievements.
package digest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitdigest/internal/stats"
)

// A Member is one user's contribution to a digest: the target week's stats
// plus the previous week's activity count, which drives the improvement
// achievement.
type Member struct {
	UserID             string
	DisplayName        string
	Stats              stats.AggregateStats
	PreviousActivities int
	Comparison         *stats.ComparisonResult
}

// Input is everything a digest needs. Rendering is a pure function of it.
type Input struct {
	GroupName string
	Period    stats.Period
	Members   []Member
}

// A Digest is a rendered weekly summary with a stable identifier.
type Digest struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Text        string    `json:"text"`
}

// New renders the input and wraps it with an identifier and timestamp.
func New(in Input) Digest {
	return Digest{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Text:        Render(in),
	}
}

// Render produces the digest text. Sections appear in a fixed order
// (header, group totals, top performers, member lines, achievements) and
// every number is reproducible from the input, so two renders of the same
// input are byte-identical.
func Render(in Input) string {
	members := sortedMembers(in.Members)

	var b strings.Builder
	writeHeader(&b, in)
	writeGroupTotals(&b, members)
	writeTopPerformers(&b, members)
	writeMemberLines(&b, members)
	writeAchievements(&b, members)
	b.WriteString("Keep it up, everyone! 💪\n")
	return b.String()
}

// sortedMembers orders members by activity count descending with user ID
// as the ascending tie break.
func sortedMembers(members []Member) []Member {
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Stats.Totals.Activities != b.Stats.Totals.Activities {
			return a.Stats.Totals.Activities > b.Stats.Totals.Activities
		}
		return a.UserID < b.UserID
	})
	return sorted
}

func writeHeader(b *strings.Builder, in Input) {
	fmt.Fprintf(b, "🏃 %s Weekly Digest\n", in.GroupName)
	fmt.Fprintf(b, "📅 %s\n\n", in.Period.Label())
}

func writeGroupTotals(b *strings.Builder, members []Member) {
	var group stats.Totals
	byType := map[string]int{}
	for _, m := range members {
		group.Merge(m.Stats.Totals)
		for t, totals := range m.Stats.ByType {
			byType[t] += totals.Activities
		}
	}

	b.WriteString("📊 GROUP TOTALS\n")
	fmt.Fprintf(b, "• Activities: %d\n", group.Activities)
	fmt.Fprintf(b, "• Distance: %.1f km (%.1f km equivalent)\n",
		group.DistanceM/1000, group.EquivalentKm)
	fmt.Fprintf(b, "• Time: %.1f h\n", group.DurationS/3600)
	fmt.Fprintf(b, "• Calories: %d\n", group.Calories)
	fmt.Fprintf(b, "• Steps: %d\n", group.Steps)
	if popular := mostPopularType(byType); popular != "" {
		fmt.Fprintf(b, "• Most popular: %s\n", titleType(popular))
	}
	b.WriteString("\n")
}

// mostPopularType picks the type with the highest activity count,
// alphabetically first on ties.
func mostPopularType(byType map[string]int) string {
	best := ""
	for t, n := range byType {
		if best == "" || n > byType[best] || (n == byType[best] && t < best) {
			best = t
		}
	}
	return best
}

func titleType(t string) string {
	words := strings.Split(t, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func writeTopPerformers(b *strings.Builder, members []Member) {
	if len(members) == 0 {
		return
	}

	b.WriteString("🏆 TOP PERFORMERS\n")
	mostActive := topBy(members, func(t stats.Totals) float64 { return float64(t.Activities) })
	fmt.Fprintf(b, "• Most active: %s (%d activities)\n",
		mostActive.DisplayName, mostActive.Stats.Totals.Activities)

	mostSteps := topBy(members, func(t stats.Totals) float64 { return float64(t.Steps) })
	fmt.Fprintf(b, "• Most steps: %s (%d steps)\n",
		mostSteps.DisplayName, mostSteps.Stats.Totals.Steps)

	mostDistance := topBy(members, func(t stats.Totals) float64 { return t.DistanceM })
	fmt.Fprintf(b, "• Most distance: %s (%.1f km)\n",
		mostDistance.DisplayName, mostDistance.Stats.Totals.DistanceM/1000)
	b.WriteString("\n")
}

// topBy returns the member maximizing metric, breaking ties by user ID
// ascending.
func topBy(members []Member, metric func(stats.Totals) float64) Member {
	best := members[0]
	for _, m := range members[1:] {
		v, bv := metric(m.Stats.Totals), metric(best.Stats.Totals)
		if v > bv || (v == bv && m.UserID < best.UserID) {
			best = m
		}
	}
	return best
}

func writeMemberLines(b *strings.Builder, members []Member) {
	if len(members) == 0 {
		return
	}

	b.WriteString("👥 MEMBERS\n")
	for _, m := range members {
		if m.Stats.Totals.Activities == 0 {
			fmt.Fprintf(b, "• %s: no activities this week\n", m.DisplayName)
			continue
		}
		line := fmt.Sprintf("• %s: %d activities, %.1f km, %.1f h",
			m.DisplayName,
			m.Stats.Totals.Activities,
			m.Stats.Totals.DistanceM/1000,
			m.Stats.Totals.DurationS/3600)
		if m.Comparison != nil && m.Comparison.HasBaseline && m.Comparison.Activities.Pct != nil {
			line += fmt.Sprintf(" (%+.0f%% vs previous)", *m.Comparison.Activities.Pct)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
}

const maxAchievements = 10

func writeAchievements(b *strings.Builder, members []Member) {
	achievements := collectAchievements(members)
	if len(achievements) == 0 {
		return
	}

	b.WriteString("🎉 ACHIEVEMENTS\n")
	for _, a := range achievements {
		fmt.Fprintf(b, "%s\n", a)
	}
	b.WriteString("\n")
}

// collectAchievements walks members in display order and emits improvement,
// distance and consistency badges, capped at maxAchievements.
func collectAchievements(members []Member) []string {
	var out []string

	for _, m := range members {
		count := m.Stats.Totals.Activities
		if count > m.PreviousActivities && count >= 3 {
			out = append(out, fmt.Sprintf("🏅 %s stepped it up with %d more activities than last week!",
				m.DisplayName, count-m.PreviousActivities))
		}
	}

	for _, m := range members {
		km := m.Stats.Totals.DistanceM / 1000
		switch {
		case km >= 100:
			out = append(out, fmt.Sprintf("🥇 %s covered %.1f km this week!", m.DisplayName, km))
		case km >= 50:
			out = append(out, fmt.Sprintf("🥈 %s hit %.1f km this week!", m.DisplayName, km))
		}
	}

	for _, m := range members {
		switch count := m.Stats.Totals.Activities; {
		case count >= 7:
			out = append(out, fmt.Sprintf("🔥 %s was active every day this week!", m.DisplayName))
		case count >= 5:
			out = append(out, fmt.Sprintf("⭐ %s stayed consistent with %d activities!", m.DisplayName, count))
		}
	}

	if len(out) > maxAchievements {
		out = out[:maxAchievements]
	}
	return out
}
