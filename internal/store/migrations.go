package store

import (
	"database/sql"
	"fmt"
)

// A migration is one schema upgrade step. Steps are applied in version order
// exactly once; the applied version is recorded in schema_migrations, so
// re-running Migrate on an up-to-date database is a no-op.
type migration struct {
	Version int
	Name    string
	Stmts   []string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "users and activities",
		Stmts: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				display_name TEXT NOT NULL,
				external_account_id TEXT,
				last_synced_at TEXT,
				removed INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			)`,

			// Normalized metric columns plus the original payload, kept
			// byte-for-byte so metrics can be re-extracted later.
			`CREATE TABLE IF NOT EXISTS activities (
				user_id TEXT NOT NULL,
				external_id TEXT NOT NULL,
				activity_type TEXT NOT NULL,
				start_time TEXT NOT NULL,
				duration_s REAL NOT NULL DEFAULT 0,
				distance_m REAL NOT NULL DEFAULT 0,
				calories INTEGER NOT NULL DEFAULT 0,
				steps INTEGER NOT NULL DEFAULT 0,
				elevation_gain_m REAL NOT NULL DEFAULT 0,
				raw_json BLOB,
				created_at TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at TEXT NOT NULL DEFAULT (datetime('now')),
				PRIMARY KEY (user_id, external_id),
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`,
		},
	},
	{
		Version: 2,
		Name:    "activity indexes and sync state",
		Stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_activities_user_start ON activities(user_id, start_time)`,
			`CREATE INDEX IF NOT EXISTS idx_activities_type ON activities(activity_type)`,

			`CREATE TABLE IF NOT EXISTS sync_state (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			)`,
		},
	},
	{
		Version: 3,
		Name:    "heart rate columns",
		Stmts: []string{
			`ALTER TABLE activities ADD COLUMN avg_heart_rate REAL`,
			`ALTER TABLE activities ADD COLUMN max_heart_rate REAL`,
		},
	},
}

// Migrate applies all pending schema migrations in order.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		for _, stmt := range m.Stmts {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
			}
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	return version, err
}
