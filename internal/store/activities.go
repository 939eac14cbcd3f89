package store

import (
	"database/sql"
	"fmt"
	"time"
)

const activityColumns = `user_id, external_id, activity_type, start_time,
	duration_s, distance_m, calories, steps, elevation_gain_m,
	avg_heart_rate, max_heart_rate, raw_json`

// UpsertActivity inserts or updates an activity. (user_id, external_id) is
// the idempotency key: re-applying the same record replaces, never
// duplicates.
func (s *Store) UpsertActivity(a *Activity) error {
	_, err := s.db.Exec(`
		INSERT INTO activities (
			user_id, external_id, activity_type, start_time,
			duration_s, distance_m, calories, steps, elevation_gain_m,
			avg_heart_rate, max_heart_rate, raw_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(user_id, external_id) DO UPDATE SET
			activity_type = excluded.activity_type,
			start_time = excluded.start_time,
			duration_s = excluded.duration_s,
			distance_m = excluded.distance_m,
			calories = excluded.calories,
			steps = excluded.steps,
			elevation_gain_m = excluded.elevation_gain_m,
			avg_heart_rate = excluded.avg_heart_rate,
			max_heart_rate = excluded.max_heart_rate,
			raw_json = excluded.raw_json,
			updated_at = datetime('now')
	`,
		a.UserID, a.ExternalID, a.ActivityType, a.StartTime.UTC().Format(time.RFC3339),
		a.DurationS, a.DistanceM, a.Calories, a.Steps, a.ElevationGainM,
		ptrToNullFloat64(a.AvgHeartRate), ptrToNullFloat64(a.MaxHeartRate), a.RawJSON,
	)
	return err
}

// ReplaceMetrics rewrites an activity's normalized metric columns, leaving
// the stored raw payload untouched. Used by re-extraction after field
// resolution rules change.
func (s *Store) ReplaceMetrics(a *Activity) error {
	result, err := s.db.Exec(`
		UPDATE activities SET
			activity_type = ?,
			start_time = ?,
			duration_s = ?,
			distance_m = ?,
			calories = ?,
			steps = ?,
			elevation_gain_m = ?,
			avg_heart_rate = ?,
			max_heart_rate = ?,
			updated_at = datetime('now')
		WHERE user_id = ? AND external_id = ?
	`,
		a.ActivityType, a.StartTime.UTC().Format(time.RFC3339),
		a.DurationS, a.DistanceM, a.Calories, a.Steps, a.ElevationGainM,
		ptrToNullFloat64(a.AvgHeartRate), ptrToNullFloat64(a.MaxHeartRate),
		a.UserID, a.ExternalID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrActivityNotFound
	}
	return nil
}

// ListActivities returns all of a user's activities whose start time falls
// in the half-open interval [start, end), ordered by start time ascending.
func (s *Store) ListActivities(userID string, start, end time.Time) ([]Activity, error) {
	rows, err := s.db.Query(`
		SELECT `+activityColumns+`
		FROM activities
		WHERE user_id = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time ASC, external_id ASC
	`, userID, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// ListAllActivities returns every stored activity, ordered by user then
// start time. Used by re-extraction over the raw payload blobs.
func (s *Store) ListAllActivities() ([]Activity, error) {
	rows, err := s.db.Query(`
		SELECT ` + activityColumns + `
		FROM activities
		ORDER BY user_id ASC, start_time ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// CountActivities returns the number of activities stored for a user.
func (s *Store) CountActivities(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM activities WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}

func scanActivities(rows *sql.Rows) ([]Activity, error) {
	var activities []Activity

	for rows.Next() {
		var a Activity
		var startTime string
		var avgHR, maxHR sql.NullFloat64

		err := rows.Scan(
			&a.UserID, &a.ExternalID, &a.ActivityType, &startTime,
			&a.DurationS, &a.DistanceM, &a.Calories, &a.Steps, &a.ElevationGainM,
			&avgHR, &maxHR, &a.RawJSON,
		)
		if err != nil {
			return nil, err
		}

		a.StartTime, err = time.Parse(time.RFC3339, startTime)
		if err != nil {
			return nil, fmt.Errorf("parsing start_time %q: %w", startTime, err)
		}
		a.AvgHeartRate = nullFloat64ToPtr(avgHR)
		a.MaxHeartRate = nullFloat64ToPtr(maxHR)

		activities = append(activities, a)
	}

	return activities, rows.Err()
}
