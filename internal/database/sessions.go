package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LoadSession returns the saved browser state for site, or nil when there is none.
func (s *Store) LoadSession(ctx context.Context, site string) ([]byte, error) {
	var state []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM sessions WHERE site=?`, site).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return state, err
}

// SaveSession replaces the browser state for site. The bytes are stored as given.
func (s *Store) SaveSession(ctx context.Context, site string, state []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (site, state, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(site) DO UPDATE SET state=excluded.state, updated_at=excluded.updated_at`,
		site, state, time.Now())
	return err
}
