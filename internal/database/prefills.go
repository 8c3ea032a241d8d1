package database

import (
	"context"
	"fmt"
	"time"
)

// Prefill is one completed form prefill counted against a site budget.
type Prefill struct {
	Site  string
	JobID string
	At    time.Time
}

// RecordPrefill stores a completed prefill for site.
func (s *Store) RecordPrefill(ctx context.Context, site, jobID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prefills (site, job_id, prefilled_at) VALUES (?, ?, ?)`,
		site, nullString(jobID), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record prefill: %w", err)
	}
	return nil
}

// PrefillsSince returns prefills made after since, oldest first.
func (s *Store) PrefillsSince(ctx context.Context, since time.Time) ([]Prefill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT site, COALESCE(job_id, ''), prefilled_at FROM prefills
		 WHERE prefilled_at > ? ORDER BY prefilled_at ASC, id ASC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list prefills: %w", err)
	}
	defer rows.Close()

	var prefills []Prefill
	for rows.Next() {
		var p Prefill
		if err := rows.Scan(&p.Site, &p.JobID, &p.At); err != nil {
			return nil, err
		}
		prefills = append(prefills, p)
	}
	return prefills, rows.Err()
}
