package store

import "time"

// User represents a dashboard participant. Users are soft-removed so that
// historical aggregates stay intact.
type User struct {
	ID                string
	DisplayName       string
	ExternalAccountID string
	LastSyncedAt      *time.Time
	Removed           bool
}

// Activity is one normalized activity record. The metric columns are filled
// by the extractor at ingest time; RawJSON holds the original payload
// byte-for-byte so metrics can be re-extracted if resolution rules change.
type Activity struct {
	UserID         string
	ExternalID     string
	ActivityType   string
	StartTime      time.Time // stored in UTC
	DurationS      float64   // seconds
	DistanceM      float64   // meters
	Calories       int
	Steps          int
	ElevationGainM float64  // meters
	AvgHeartRate   *float64 // nullable
	MaxHeartRate   *float64 // nullable
	RawJSON        []byte
}
