package stats

import "time"

// A Delta is the change of one metric against a baseline. Pct is nil when
// the baseline value is zero and the target is not, because there is no
// meaningful percentage to report. When both are zero Pct is 0.
type Delta struct {
	Abs float64  `json:"abs"`
	Pct *float64 `json:"pct"`
}

func deltaOf(target, baseline float64) Delta {
	d := Delta{Abs: target - baseline}
	switch {
	case baseline != 0:
		pct := (target - baseline) / baseline * 100
		d.Pct = &pct
	case target == 0:
		zero := 0.0
		d.Pct = &zero
	}
	return d
}

// A Baseline is a reference value per metric. Fields are floats because
// baselines are usually averages over several periods.
type Baseline struct {
	Activities     float64 `json:"activities"`
	DurationS      float64 `json:"duration_s"`
	DistanceM      float64 `json:"distance_m"`
	Calories       float64 `json:"calories"`
	Steps          float64 `json:"steps"`
	ElevationGainM float64 `json:"elevation_gain_m"`
	EquivalentKm   float64 `json:"equivalent_km"`
}

func (b *Baseline) add(t Totals) {
	b.Activities += float64(t.Activities)
	b.DurationS += t.DurationS
	b.DistanceM += t.DistanceM
	b.Calories += float64(t.Calories)
	b.Steps += float64(t.Steps)
	b.ElevationGainM += t.ElevationGainM
	b.EquivalentKm += t.EquivalentKm
}

func (b *Baseline) scale(f float64) {
	b.Activities *= f
	b.DurationS *= f
	b.DistanceM *= f
	b.Calories *= f
	b.Steps *= f
	b.ElevationGainM *= f
	b.EquivalentKm *= f
}

// RollingBaseline averages the non-empty entries of history (the totals of
// the trailing periods before the target). Periods with no activities are
// excluded from the mean; if every period is empty there is no baseline.
func RollingBaseline(history []Totals) (Baseline, bool) {
	var b Baseline
	n := 0
	for _, t := range history {
		if t.Activities == 0 {
			continue
		}
		b.add(t)
		n++
	}
	if n == 0 {
		return Baseline{}, false
	}
	b.scale(1 / float64(n))
	return b, true
}

// YTDBaseline divides the year-to-date totals (everything strictly before
// the target period, from January 1 on) by the number of elapsed periods.
// A target in the first period of the year has no baseline.
func YTDBaseline(ytd Totals, elapsedPeriods int) (Baseline, bool) {
	if elapsedPeriods <= 0 {
		return Baseline{}, false
	}
	var b Baseline
	b.add(ytd)
	b.scale(1 / float64(elapsedPeriods))
	return b, true
}

// YTDElapsedPeriods counts how many periods of target's kind lie between
// the period containing January 1 of target's year and target itself.
func YTDElapsedPeriods(target Period) int {
	jan1 := time.Date(target.Start.Year(), 1, 1, 0, 0, 0, 0, target.Start.Location())
	return target.elapsedSince(jan1)
}

// A ComparisonResult pairs a target period's totals with a baseline and the
// per-metric deltas between them. When HasBaseline is false the deltas are
// meaningless and renderers should say so instead of showing numbers.
type ComparisonResult struct {
	Target      Totals   `json:"target"`
	Baseline    Baseline `json:"baseline"`
	HasBaseline bool     `json:"has_baseline"`

	Activities     Delta `json:"activities"`
	DurationS      Delta `json:"duration_s"`
	DistanceM      Delta `json:"distance_m"`
	Calories       Delta `json:"calories"`
	Steps          Delta `json:"steps"`
	ElevationGainM Delta `json:"elevation_gain_m"`
	EquivalentKm   Delta `json:"equivalent_km"`
}

// Compare computes the per-metric deltas of target against ref.
func Compare(target Totals, ref Baseline, hasBaseline bool) ComparisonResult {
	r := ComparisonResult{Target: target, Baseline: ref, HasBaseline: hasBaseline}
	if !hasBaseline {
		return r
	}
	r.Activities = deltaOf(float64(target.Activities), ref.Activities)
	r.DurationS = deltaOf(target.DurationS, ref.DurationS)
	r.DistanceM = deltaOf(target.DistanceM, ref.DistanceM)
	r.Calories = deltaOf(float64(target.Calories), ref.Calories)
	r.Steps = deltaOf(float64(target.Steps), ref.Steps)
	r.ElevationGainM = deltaOf(target.ElevationGainM, ref.ElevationGainM)
	r.EquivalentKm = deltaOf(target.EquivalentKm, ref.EquivalentKm)
	return r
}
