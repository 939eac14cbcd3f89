package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertUser inserts or updates a user. The removed flag is left untouched
// on update so re-syncing a soft-removed user does not resurrect them.
func (s *Store) UpsertUser(u *User) error {
	_, err := s.db.Exec(`
		INSERT INTO users (id, display_name, external_account_id, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			external_account_id = excluded.external_account_id,
			updated_at = datetime('now')
	`, u.ID, u.DisplayName, toNullString(u.ExternalAccountID))
	return err
}

// GetUser retrieves a user by ID, including soft-removed ones.
func (s *Store) GetUser(id string) (*User, error) {
	row := s.db.QueryRow(`
		SELECT id, display_name, external_account_id, last_synced_at, removed
		FROM users
		WHERE id = ?
	`, id)
	return scanUser(row)
}

// ListUsers returns all active (non-removed) users ordered by ID.
func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`
		SELECT id, display_name, external_account_id, last_synced_at, removed
		FROM users
		WHERE removed = 0
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// RemoveUser soft-removes a user. Their activities are kept so that group
// aggregates over past periods remain reproducible.
func (s *Store) RemoveUser(id string) error {
	result, err := s.db.Exec(`
		UPDATE users SET removed = 1, updated_at = datetime('now') WHERE id = ?
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RecordSync updates the user's last-sync timestamp. Purely informational;
// aggregation never reads it.
func (s *Store) RecordSync(id string, ts time.Time) error {
	result, err := s.db.Exec(`
		UPDATE users SET last_synced_at = ?, updated_at = datetime('now') WHERE id = ?
	`, ts.UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var externalAccountID sql.NullString
	var lastSyncedAt sql.NullString
	var removed int

	err := row.Scan(&u.ID, &u.DisplayName, &externalAccountID, &lastSyncedAt, &removed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	u.ExternalAccountID = externalAccountID.String
	u.Removed = removed == 1
	if lastSyncedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastSyncedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_synced_at %q: %w", lastSyncedAt.String, err)
		}
		u.LastSyncedAt = &t
	}
	return &u, nil
}

func scanUserRow(rows *sql.Rows) (*User, error) {
	var u User
	var externalAccountID sql.NullString
	var lastSyncedAt sql.NullString
	var removed int

	if err := rows.Scan(&u.ID, &u.DisplayName, &externalAccountID, &lastSyncedAt, &removed); err != nil {
		return nil, err
	}

	u.ExternalAccountID = externalAccountID.String
	u.Removed = removed == 1
	if lastSyncedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastSyncedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_synced_at %q: %w", lastSyncedAt.String, err)
		}
		u.LastSyncedAt = &t
	}
	return &u, nil
}
