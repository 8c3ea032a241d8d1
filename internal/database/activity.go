package database

import (
	"context"
	"database/sql"
	"slices"

	"github.com/khrees2412/applyflow/pkg/models"
)

// AppendActivity persists one activity entry. Entries are never updated.
func (s *Store) AppendActivity(ctx context.Context, entry models.ActivityLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, service, level, message, job_id, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Service), string(entry.Level), entry.Message, nullString(entry.JobID), entry.Timestamp)
	return err
}

// ListActivity returns the newest limit entries in append order, optionally for one job.
func (s *Store) ListActivity(ctx context.Context, jobID string, limit int) ([]models.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, service, level, message, job_id, timestamp FROM activity_log`
	args := []any{}
	if jobID != "" {
		query += ` WHERE job_id=?`
		args = append(args, jobID)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.ActivityLogEntry{}
	for rows.Next() {
		var (
			e                      models.ActivityLogEntry
			service, level, jobRef sql.NullString
		)
		if err := rows.Scan(&e.ID, &service, &level, &e.Message, &jobRef, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Service = models.Service(service.String)
		e.Level = models.LogLevel(level.String)
		e.JobID = jobRef.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	return entries, nil
}

// PruneActivity keeps the newest keep entries and returns how many were removed.
func (s *Store) PruneActivity(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM activity_log WHERE seq NOT IN (SELECT seq FROM activity_log ORDER BY seq DESC LIMIT ?)`, max(keep, 0))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
