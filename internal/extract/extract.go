// Package extract resolves canonical activity metrics from raw, heterogeneous
// payloads delivered by the sync collaborator. Payloads come from different
// API versions and from synthetic generators, so every field is resolved by
// trying a ranked list of candidate locations; the first present, non-null
// candidate wins. Resolution is a pure function over the payload bytes.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Metrics is the canonical metric tuple for a single activity.
// Numeric fields default to 0 when no candidate resolves; callers never
// see a null metric.
type Metrics struct {
	ExternalID     string
	ActivityType   string
	StartTime      time.Time
	DurationS      float64
	DistanceM      float64
	ElevationGainM float64
	Calories       int
	Steps          int
	AvgHeartRate   *float64
	MaxHeartRate   *float64
}

// EquivalentKm returns the normalized cross-activity distance:
// every 100 m of elevation gain counts as 1 additional km.
func (m Metrics) EquivalentKm() float64 {
	return m.DistanceM/1000 + m.ElevationGainM/100
}

// Candidate paths per metric, in resolution order. A path is a dot-separated
// chain of object keys; the first path that yields a present, non-null value
// wins. The processed/normalized locations rank ahead of raw vendor fields.
var (
	externalIDPaths = []string{"activityId", "external_id", "id"}
	typePaths       = []string{"activityType.typeKey", "activityType", "activity_type", "type"}
	startTimePaths  = []string{"startTimeGMT", "startTimeLocal", "start_time", "startDate"}
	durationPaths   = []string{"duration", "summaryDTO.duration", "elapsedDuration", "duration_s"}
	distancePaths   = []string{"distance", "summaryDTO.distance", "distance_m"}
	caloriesPaths   = []string{"calories", "processed_metrics.active_calories", "activeCalories", "activeKilocalories"}
	stepsPaths      = []string{"processed_metrics.steps", "steps", "totalSteps"}
	elevationPaths  = []string{"elevationGain", "summaryDTO.elevationGain", "elevation_gain_m", "totalElevationGain"}
	avgHRPaths      = []string{"averageHR", "avgHeartRate", "average_heartrate"}
	maxHRPaths      = []string{"maxHR", "maxHeartRate", "max_heartrate"}
)

// Start-time layouts tried in order. Garmin-style payloads report naive
// local timestamps; naive values are interpreted as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Resolve extracts the canonical metric tuple from one raw activity payload.
// It fails only on undecodable JSON; individual missing fields fall back to
// their zero values.
func Resolve(raw []byte) (Metrics, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Metrics{}, fmt.Errorf("decoding activity payload: %w", err)
	}

	m := Metrics{
		ExternalID:     resolveString(payload, externalIDPaths),
		ActivityType:   NormalizeType(resolveString(payload, typePaths)),
		DurationS:      resolveNumber(payload, durationPaths),
		DistanceM:      resolveNumber(payload, distancePaths),
		ElevationGainM: resolveNumber(payload, elevationPaths),
		Calories:       int(resolveNumber(payload, caloriesPaths)),
		Steps:          int(resolveNumber(payload, stepsPaths)),
	}

	if hr, ok := lookupNumber(payload, avgHRPaths); ok && hr > 0 {
		m.AvgHeartRate = &hr
	}
	if hr, ok := lookupNumber(payload, maxHRPaths); ok && hr > 0 {
		m.MaxHeartRate = &hr
	}

	if ts := resolveString(payload, startTimePaths); ts != "" {
		m.StartTime = parseStartTime(ts)
	}

	return m, nil
}

// NormalizeType lower-cases an activity type and collapses separators into
// snake-case tokens. Unknown types pass through unchanged so new vendor
// types never get rejected.
func NormalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "unknown"
	}
	t = strings.ReplaceAll(t, " ", "_")
	t = strings.ReplaceAll(t, "-", "_")
	return t
}

func parseStartTime(value string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// lookup walks a dot-separated path through nested objects.
func lookup(payload map[string]any, path string) (any, bool) {
	keys := strings.Split(path, ".")
	var current any = payload
	for _, key := range keys {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

func lookupNumber(payload map[string]any, paths []string) (float64, bool) {
	for _, path := range paths {
		value, ok := lookup(payload, path)
		if !ok {
			continue
		}
		switch n := value.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		}
	}
	return 0, false
}

func resolveNumber(payload map[string]any, paths []string) float64 {
	n, _ := lookupNumber(payload, paths)
	return n
}

func resolveString(payload map[string]any, paths []string) string {
	for _, path := range paths {
		value, ok := lookup(payload, path)
		if !ok {
			continue
		}
		switch s := value.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			// Numeric external ids arrive as JSON numbers.
			if s == float64(int64(s)) {
				return fmt.Sprintf("%d", int64(s))
			}
			return fmt.Sprintf("%v", s)
		}
	}
	return ""
}
