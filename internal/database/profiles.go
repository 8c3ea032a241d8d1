package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/khrees2412/applyflow/internal/apperr"
	"github.com/khrees2412/applyflow/pkg/models"
)

// SaveProfile stores profile as JSON, replacing any profile with the same id.
func (s *Store) SaveProfile(ctx context.Context, profile *models.Profile) error {
	if profile == nil || profile.ID == "" {
		return fmt.Errorf("%w: profile id is required", apperr.ErrInvalidInput)
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	query := `INSERT INTO profiles (id, name, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, data=excluded.data, updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query, profile.ID, profile.Name, string(data), time.Now())
	return err
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return s.scanProfile(s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE id=?`, id), id)
}

// CurrentProfile returns the most recently saved profile.
func (s *Store) CurrentProfile(ctx context.Context) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM profiles ORDER BY updated_at DESC, rowid DESC LIMIT 1`)
	return s.scanProfile(row, "current")
}

func (s *Store) scanProfile(row *sql.Row, id string) (*models.Profile, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("profile", id)
		}
		return nil, err
	}

	var profile models.Profile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", id, err)
	}
	return &profile, nil
}

// SaveTailoredResume stores a generated resume. Resumes are never updated.
func (s *Store) SaveTailoredResume(ctx context.Context, resume *models.TailoredResume) error {
	data, err := json.Marshal(resume)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tailored_resumes (id, job_id, profile_id, data, generated_at) VALUES (?, ?, ?, ?, ?)`,
		resume.ID, resume.JobID, resume.ProfileID, string(data), resume.GeneratedAt)
	return err
}

// LatestTailoredResume returns the newest resume generated for job.
func (s *Store) LatestTailoredResume(ctx context.Context, jobID string) (*models.TailoredResume, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM tailored_resumes WHERE job_id=? ORDER BY generated_at DESC, rowid DESC LIMIT 1`,
		jobID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("tailored resume for job", jobID)
	}
	if err != nil {
		return nil, err
	}

	var resume models.TailoredResume
	if err := json.Unmarshal([]byte(data), &resume); err != nil {
		return nil, fmt.Errorf("decode tailored resume for %s: %w", jobID, err)
	}
	return &resume, nil
}
