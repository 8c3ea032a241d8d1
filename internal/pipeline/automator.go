// Package pipeline runs a job through analysis, tailoring and form prefill,
// stopping at human review. It never submits an application.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khrees2412/applyflow/internal/activity"
	"github.com/khrees2412/applyflow/internal/applicator"
	"github.com/khrees2412/applyflow/internal/apperr"
	"github.com/khrees2412/applyflow/internal/logger"
	"github.com/khrees2412/applyflow/internal/matcher"
	"github.com/khrees2412/applyflow/internal/ratelimit"
	"github.com/khrees2412/applyflow/pkg/models"
)

const (
	defaultStepTimeout = 45 * time.Second
	closeTimeout       = 10 * time.Second
)

// Scorer rates a job against a profile without failing.
type Scorer interface {
	Score(ctx context.Context, profile *models.Profile, job *models.Job) *matcher.Assessment
}

// Tailorer produces a tailored resume.
type Tailorer interface {
	Tailor(ctx context.Context, profile *models.Profile, job *models.Job) (*models.TailoredResume, error)
}

// Store persists pipeline results.
type Store interface {
	SaveJob(ctx context.Context, job *models.Job) error
	SaveTailoredResume(ctx context.Context, resume *models.TailoredResume) error
}

// Renderer writes a tailored resume to a file for upload and returns its path.
type Renderer interface {
	Render(profile *models.Profile, job *models.Job, resume *models.TailoredResume) (string, error)
}

// Notifier tells a human that an application waits for review.
type Notifier interface {
	NotifyPendingReview(ctx context.Context, job *models.Job, resume *models.TailoredResume) error
}

// History records completed prefills so a later process can restore site budgets.
type History interface {
	RecordPrefill(ctx context.Context, site, jobID string, at time.Time) error
}

// Deps are the collaborators of an Automator. Matcher, Tailor, Backend and
// Activity are required.
type Deps struct {
	Matcher  Scorer
	Tailor   Tailorer
	Backend  applicator.Backend
	Limiter  *ratelimit.Limiter
	Activity *activity.Log

	Store    Store
	Sessions applicator.SessionStore
	Renderer Renderer
	Notifier Notifier
	History  History
	Logger   *zap.Logger
}

// Run is one job moving through the pipeline. A Run must not be advanced
// from two goroutines at once.
type Run struct {
	Job        *models.Job
	Profile    *models.Profile
	Assessment *matcher.Assessment
	Resume     *models.TailoredResume
	ResumePath string
}

// Automator is one automation worker with one browser session.
type Automator struct {
	deps        Deps
	logger      *zap.Logger
	slot        *slot
	retries     int
	stepTimeout time.Duration
	now         func() time.Time
}

// Option configures an Automator
type Option func(*Automator)

// WithStageRetries sets the automatic retries per stage, clamped to 0 or 1
func WithStageRetries(n int) Option {
	return func(a *Automator) { a.retries = min(max(n, 0), 1) }
}

// WithStepTimeout bounds every backend call
func WithStepTimeout(d time.Duration) Option {
	return func(a *Automator) { a.stepTimeout = d }
}

// WithClock overrides the UpdatedAt source
func WithClock(now func() time.Time) Option {
	return func(a *Automator) { a.now = now }
}

// New creates an Automator. A nil Limiter gets the default 5 per hour sliding window.
func New(deps Deps, opts ...Option) (*Automator, error) {
	switch {
	case deps.Matcher == nil:
		return nil, errors.New("pipeline: matcher is required")
	case deps.Tailor == nil:
		return nil, errors.New("pipeline: tailor is required")
	case deps.Backend == nil:
		return nil, errors.New("pipeline: automation backend is required")
	case deps.Activity == nil:
		return nil, errors.New("pipeline: activity log is required")
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.New(ratelimit.Config{Limit: ratelimit.DefaultLimit, Window: ratelimit.DefaultWindow})
	}

	a := &Automator{
		deps:        deps,
		logger:      logger.OrNop(deps.Logger),
		slot:        newSlot(),
		retries:     1,
		stepTimeout: defaultStepTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ActiveJob returns the id of the job holding the automation session, if any.
func (a *Automator) ActiveJob() string {
	return a.slot.current()
}

// Process advances run until it reaches PENDING_REVIEW or a terminal status,
// is deferred, or fails.
func (a *Automator) Process(ctx context.Context, run *Run) error {
	for {
		if err := validateRun(run); err != nil {
			return a.invalid(run, err)
		}
		if run.Job.Status == models.StatusPendingReview || run.Job.Status.IsTerminal() {
			return nil
		}
		if err := a.Advance(ctx, run); err != nil {
			return err
		}
	}
}

// Advance performs exactly one unit of work for the job's current status.
// PENDING_REVIEW never advances here; only Confirm moves it on.
func (a *Automator) Advance(ctx context.Context, run *Run) error {
	if err := validateRun(run); err != nil {
		return a.invalid(run, err)
	}

	job := run.Job
	if job.Status == "" {
		job.Status = models.StatusQueued
	}

	switch job.Status {
	case models.StatusPendingReview:
		return fmt.Errorf("job %s: %w", job.ID, apperr.ErrAwaitingReview)
	case models.StatusApplied, models.StatusInterview, models.StatusRejected:
		return fmt.Errorf("job %s is %s: %w", job.ID, job.Status, apperr.ErrInvalidTransition)
	}

	if err := a.slot.acquire(ctx, job.ID); err != nil {
		a.deps.Activity.Warn(models.ServiceTracking, job.ID,
			"Waiting for the automation session was cancelled; %s stays %s", describe(job), job.Status)
		return fmt.Errorf("job %s: waiting for automation session: %w", job.ID, err)
	}

	switch job.Status {
	case models.StatusQueued:
		return a.transition(ctx, run, models.StatusAnalyzing, models.LevelInfo,
			"Analyzing match for %s", describe(job))
	case models.StatusAnalyzing:
		return a.analyze(ctx, run)
	case models.StatusTailoring:
		return a.tailor(ctx, run)
	case models.StatusPrefilling:
		return a.prefill(ctx, run)
	default:
		return fmt.Errorf("job %s has unknown status %q: %w", job.ID, job.Status, apperr.ErrInvalidInput)
	}
}

// Confirm records the human decision that the application was submitted.
func (a *Automator) Confirm(ctx context.Context, run *Run) error {
	if err := validateRun(run); err != nil {
		return a.invalid(run, err)
	}
	if run.Job.Status != models.StatusPendingReview {
		return fmt.Errorf("job %s is %s, confirm needs %s: %w",
			run.Job.ID, run.Job.Status, models.StatusPendingReview, apperr.ErrInvalidTransition)
	}
	return a.transition(ctx, run, models.StatusApplied, models.LevelInfo,
		"Application for %s confirmed as submitted by reviewer", describe(run.Job))
}

// Reject moves a non-terminal job to REJECTED at the user's request.
func (a *Automator) Reject(ctx context.Context, run *Run, reason string) error {
	if err := validateRun(run); err != nil {
		return a.invalid(run, err)
	}
	if reason == "" {
		reason = "no reason given"
	}
	return a.transition(ctx, run, models.StatusRejected, models.LevelInfo,
		"Application for %s rejected: %s", describe(run.Job), reason)
}

// MarkInterview records an interview for an applied job.
func (a *Automator) MarkInterview(ctx context.Context, run *Run) error {
	if err := validateRun(run); err != nil {
		return a.invalid(run, err)
	}
	return a.transition(ctx, run, models.StatusInterview, models.LevelInfo,
		"Interview scheduled for %s", describe(run.Job))
}

// transition changes the status, appends the one entry describing it and persists the job.
func (a *Automator) transition(ctx context.Context, run *Run, to models.ApplicationStatus, level models.LogLevel, format string, args ...any) error {
	job := run.Job
	from := job.Status
	if !from.CanTransition(to) {
		return fmt.Errorf("job %s: %s -> %s: %w", job.ID, from, to, apperr.ErrInvalidTransition)
	}

	job.Status = to
	job.UpdatedAt = a.now()
	a.deps.Activity.Append(models.ServiceTracking, level, job.ID, fmt.Sprintf(format, args...))
	if !to.IsActive() {
		a.slot.release(job.ID)
	}
	a.logger.Debug("status changed",
		append(logger.Job(job.ID, job.Company), zap.String("from", string(from)), zap.String("to", string(to)))...)

	if a.deps.Store != nil {
		if err := a.deps.Store.SaveJob(context.WithoutCancel(ctx), job); err != nil {
			a.logger.Error("persisting job status failed", append(logger.Job(job.ID, job.Company), zap.Error(err))...)
			return fmt.Errorf("job %s: persist status %s: %w", job.ID, to, err)
		}
	}
	return nil
}

// fail rejects the job after an unrecoverable stage failure. The transition entry
// carries the error unless the failing component already logged it.
func (a *Automator) fail(ctx context.Context, run *Run, stage models.ApplicationStatus, cause error, alreadyLogged bool) error {
	level := models.LevelError
	if alreadyLogged {
		level = models.LevelInfo
	}
	if err := a.transition(ctx, run, models.StatusRejected, level,
		"Automation failed during %s for %s: %v", stage, describe(run.Job), cause); err != nil {
		return errors.Join(cause, err)
	}
	return fmt.Errorf("job %s: %s: %w", run.Job.ID, stage, cause)
}

// interrupted leaves the status unchanged after cancellation and logs one warning
// unless the component already did. The slot is freed; the next Advance of the
// job acquires it again.
func (a *Automator) interrupted(ctx context.Context, run *Run, stage models.ApplicationStatus, cause error, alreadyLogged bool) error {
	a.slot.release(run.Job.ID)
	if !alreadyLogged {
		a.deps.Activity.Warn(models.ServiceTracking, run.Job.ID,
			"%s interrupted for %s; status left at %s", stage, describe(run.Job), run.Job.Status)
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(cause, ctxErr) {
		cause = fmt.Errorf("%w: %w", cause, ctxErr)
	}
	return fmt.Errorf("job %s: %s: %w", run.Job.ID, stage, cause)
}

func (a *Automator) invalid(run *Run, err error) error {
	jobID := ""
	if run != nil && run.Job != nil {
		jobID = run.Job.ID
	}
	a.deps.Activity.Error(models.ServiceTracking, jobID, "Invalid pipeline input: %v", err)
	return err
}

func validateRun(run *Run) error {
	if run == nil {
		return fmt.Errorf("%w: run is required", apperr.ErrInvalidInput)
	}
	if err := run.Job.Validate(); err != nil {
		return err
	}
	if run.Profile == nil {
		return fmt.Errorf("%w: job %s has no profile", apperr.ErrInvalidInput, run.Job.ID)
	}
	return nil
}

func describe(job *models.Job) string {
	if job.Company == "" {
		return job.Title
	}
	return job.Title + " at " + job.Company
}
