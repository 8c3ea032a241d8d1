package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khrees2412/applyflow/internal/apperr"
	"github.com/khrees2412/applyflow/pkg/models"
)

const jobColumns = `id, title, company, location, type, url, description, source,
	posted_date, match_score, match_reasoning, status, updated_at`

// CreateJob inserts a new job. A job whose URL is already stored fails with apperr.ErrDuplicateURL.
func (s *Store) CreateJob(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if job.Status == "" {
		job.Status = models.StatusQueued
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = time.Now()
	}

	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, jobArgs(job)...)
	if isUniqueViolation(err) {
		return fmt.Errorf("job %s (%s): %w", job.ID, job.URL, apperr.ErrDuplicateURL)
	}
	return err
}

// SaveJob inserts or updates a job by id.
func (s *Store) SaveJob(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, company=excluded.company, location=excluded.location,
			type=excluded.type, url=excluded.url, description=excluded.description,
			source=excluded.source, posted_date=excluded.posted_date,
			match_score=excluded.match_score, match_reasoning=excluded.match_reasoning,
			status=excluded.status, updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, jobArgs(job)...)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", job.URL, apperr.ErrDuplicateURL)
	}
	return err
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("job", id)
	}
	return job, err
}

// FindJob resolves a job by id or by a unique id prefix, as typed on the command line.
func (s *Store) FindJob(ctx context.Context, ref string) (*models.Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: job reference is empty", apperr.ErrInvalidInput)
	}
	if job, err := s.GetJob(ctx, ref); err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return job, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id LIKE ? ESCAPE '\' LIMIT 2`,
		escapeLike(ref)+"%")
	if err != nil {
		return nil, err
	}
	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	switch len(jobs) {
	case 0:
		return nil, notFound("job", ref)
	case 1:
		return jobs[0], nil
	default:
		return nil, fmt.Errorf("%w: job reference %q is ambiguous", apperr.ErrInvalidInput, ref)
	}
}

func (s *Store) GetJobByURL(ctx context.Context, url string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE url=?`, url)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("job with url", url)
	}
	return job, err
}

// ListJobs returns jobs newest first, optionally only those in status.
func (s *Store) ListJobs(ctx context.Context, status models.ApplicationStatus) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanJobs(rows)
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("job", id)
	}
	return nil
}

// CountByStatus returns the number of jobs per status. Every status is present.
func (s *Store) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(models.StatusCounts, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		counts[st] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.ApplicationStatus(status)] = n
	}
	return counts, rows.Err()
}

func jobArgs(job *models.Job) []any {
	var score sql.NullInt64
	if job.MatchScore != nil {
		score = sql.NullInt64{Int64: int64(*job.MatchScore), Valid: true}
	}
	status := job.Status
	if status == "" {
		status = models.StatusQueued
	}
	updated := job.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return []any{
		job.ID, job.Title, job.Company, job.Location, job.Type, nullString(job.URL),
		job.Description, job.Source, job.PostedDate, score, job.MatchReasoning,
		string(status), updated,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*models.Job, error) {
	var (
		job                                      models.Job
		location, typ, url, desc, source, posted sql.NullString
		reasoning                                sql.NullString
		score                                    sql.NullInt64
		status                                   string
		updated                                  sql.NullTime
	)
	err := row.Scan(&job.ID, &job.Title, &job.Company, &location, &typ, &url, &desc, &source,
		&posted, &score, &reasoning, &status, &updated)
	if err != nil {
		return nil, err
	}

	job.Location = location.String
	job.Type = typ.String
	job.URL = url.String
	job.Description = desc.String
	job.Source = source.String
	job.PostedDate = posted.String
	job.MatchReasoning = reasoning.String
	job.Status = models.ApplicationStatus(status)
	job.UpdatedAt = updated.Time
	if score.Valid {
		v := int(score.Int64)
		job.MatchScore = &v
	}
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*models.Job, error) {
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
