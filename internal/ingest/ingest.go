package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/khrees2412/applyflow/internal/activity"
	"github.com/khrees2412/applyflow/internal/apperr"
	"github.com/khrees2412/applyflow/internal/logger"
	"github.com/khrees2412/applyflow/internal/matcher"
	"github.com/khrees2412/applyflow/pkg/models"
)

// Store accepts new jobs. CreateJob reports apperr.ErrDuplicateURL for a known URL
// and GetJobByURL reports apperr.ErrNotFound for an unknown one.
type Store interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJobByURL(ctx context.Context, url string) (*models.Job, error)
}

// BatchScorer scores many jobs against one profile.
type BatchScorer interface {
	ScoreAll(ctx context.Context, profile *models.Profile, jobs []*models.Job, concurrency int) ([]*matcher.Assessment, error)
}

// Result summarizes one ingest run.
type Result struct {
	Added      []*models.Job
	Duplicates int
	Invalid    int
}

// Ingester moves jobs from a Source into the Store.
type Ingester struct {
	store       Store
	activity    *activity.Log
	logger      *zap.Logger
	scorer      BatchScorer
	profile     *models.Profile
	concurrency int
}

// Option configures an Ingester
type Option func(*Ingester)

// WithActivityLog records ingest summaries
func WithActivityLog(l *activity.Log) Option {
	return func(i *Ingester) { i.activity = l }
}

// WithLogger sets the zap logger
func WithLogger(l *zap.Logger) Option {
	return func(i *Ingester) { i.logger = logger.OrNop(l) }
}

// WithMatching scores new jobs against profile before they are stored
func WithMatching(scorer BatchScorer, profile *models.Profile, concurrency int) Option {
	return func(i *Ingester) {
		i.scorer = scorer
		i.profile = profile
		i.concurrency = concurrency
	}
}

// New creates an Ingester writing to store.
func New(store Store, opts ...Option) *Ingester {
	i := &Ingester{store: store, logger: zap.NewNop(), concurrency: 4}
	for _, opt := range opts {
		opt(i)
	}
	if i.activity == nil {
		i.activity = activity.New(activity.WithLogger(i.logger))
	}
	return i
}

// Ingest fetches one batch, drops invalid and duplicate postings and stores the rest.
func (i *Ingester) Ingest(ctx context.Context, src Source) (*Result, error) {
	fetched, err := src.Fetch(ctx)
	if err != nil {
		i.activity.Error(models.ServiceIngest, "", "Fetching jobs failed: %v", err)
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}

	res := &Result{}
	jobs, err := i.dropKnown(ctx, i.prepare(fetched, res), res)
	if err != nil {
		return nil, err
	}

	if i.scorer != nil && i.profile != nil && len(jobs) > 0 {
		assessments, err := i.scorer.ScoreAll(ctx, i.profile, jobs, i.concurrency)
		if err != nil {
			return nil, fmt.Errorf("score jobs: %w", err)
		}
		for n, a := range assessments {
			if a != nil {
				a.Apply(jobs[n])
			}
		}
	}

	for _, job := range jobs {
		err := i.store.CreateJob(ctx, job)
		switch {
		case err == nil:
			res.Added = append(res.Added, job)
		case errors.Is(err, apperr.ErrDuplicateURL):
			res.Duplicates++
			i.logger.Debug("skipping known job", zap.String("url", job.URL))
		default:
			return res, fmt.Errorf("store job %s: %w", job.ID, err)
		}
	}

	i.activity.Info(models.ServiceIngest, "", "Ingested %d new jobs (%d duplicates, %d invalid)",
		len(res.Added), res.Duplicates, res.Invalid)
	return res, nil
}

// dropKnown removes jobs whose URL is already stored, so they are never scored again.
func (i *Ingester) dropKnown(ctx context.Context, jobs []*models.Job, res *Result) ([]*models.Job, error) {
	fresh := jobs[:0]
	for _, job := range jobs {
		if job.URL == "" {
			fresh = append(fresh, job)
			continue
		}
		_, err := i.store.GetJobByURL(ctx, job.URL)
		switch {
		case err == nil:
			res.Duplicates++
			i.logger.Debug("skipping known job", zap.String("url", job.URL))
		case errors.Is(err, apperr.ErrNotFound):
			fresh = append(fresh, job)
		default:
			return nil, fmt.Errorf("look up job %s: %w", job.URL, err)
		}
	}
	return fresh, nil
}

// prepare normalizes the batch and removes postings that repeat a URL within it.
func (i *Ingester) prepare(fetched []models.Job, res *Result) []*models.Job {
	seen := make(map[string]bool, len(fetched))
	jobs := make([]*models.Job, 0, len(fetched))

	for n := range fetched {
		job := fetched[n]
		Normalize(&job)

		if job.Title == "" || job.Description == "" {
			res.Invalid++
			i.activity.Warn(models.ServiceIngest, job.ID, "Skipped job #%d: title and description are required", n+1)
			continue
		}
		if err := job.Validate(); err != nil {
			res.Invalid++
			i.activity.Warn(models.ServiceIngest, job.ID, "Skipped job #%d: %v", n+1, err)
			continue
		}

		if key := CanonicalURL(job.URL); key != "" {
			if seen[key] {
				res.Duplicates++
				continue
			}
			seen[key] = true
		}
		jobs = append(jobs, &job)
	}
	return jobs
}
