package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/khrees2412/applyflow/internal/applicator"
	"github.com/khrees2412/applyflow/internal/apperr"
	"github.com/khrees2412/applyflow/internal/logger"
	"github.com/khrees2412/applyflow/internal/ratelimit"
	"github.com/khrees2412/applyflow/pkg/models"
)

// analyze scores the job. A fallback assessment still moves the job on with score 0.
func (a *Automator) analyze(ctx context.Context, run *Run) error {
	assessment := a.deps.Matcher.Score(ctx, run.Profile, run.Job)
	if err := ctx.Err(); err != nil {
		cause := err
		if assessment != nil && assessment.Err != nil {
			cause = assessment.Err
		}
		return a.interrupted(ctx, run, models.StatusAnalyzing, cause, assessment != nil && assessment.Fallback)
	}
	if assessment == nil {
		return a.fail(ctx, run, models.StatusAnalyzing,
			fmt.Errorf("%w: matcher returned no assessment", apperr.ErrGatewayUnavailable), false)
	}

	assessment.Apply(run.Job)
	run.Assessment = assessment
	return a.transition(ctx, run, models.StatusTailoring, models.LevelInfo,
		"Tailoring resume for %s (match score %d)", describe(run.Job), assessment.Score)
}

// tailor generates and stores the resume variant. The tailor logs its own failures.
func (a *Automator) tailor(ctx context.Context, run *Run) error {
	resume, err := a.deps.Tailor.Tailor(ctx, run.Profile, run.Job)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, apperr.ErrGatewayTimeout) {
			return a.interrupted(ctx, run, models.StatusTailoring, err, true)
		}
		return a.fail(ctx, run, models.StatusTailoring, err, true)
	}

	var path string
	if a.deps.Renderer != nil {
		path, err = a.deps.Renderer.Render(run.Profile, run.Job, resume)
		if err != nil {
			return a.fail(ctx, run, models.StatusTailoring, fmt.Errorf("render resume: %w", err), false)
		}
	}
	if a.deps.Store != nil {
		if err := a.deps.Store.SaveTailoredResume(context.WithoutCancel(ctx), resume); err != nil {
			return a.fail(ctx, run, models.StatusTailoring, fmt.Errorf("save tailored resume: %w", err), false)
		}
	}

	run.Resume = resume
	run.ResumePath = path
	return a.transition(ctx, run, models.StatusPrefilling, models.LevelInfo,
		"Prefilling application form for %s", describe(run.Job))
}

// prefill fills the application form and stops short of submitting it.
func (a *Automator) prefill(ctx context.Context, run *Run) error {
	job := run.Job
	switch {
	case run.Resume == nil:
		return a.fail(ctx, run, models.StatusPrefilling,
			fmt.Errorf("%w: no tailored resume for job %s", apperr.ErrInvalidInput, job.ID), false)
	case strings.TrimSpace(job.URL) == "":
		return a.fail(ctx, run, models.StatusPrefilling,
			fmt.Errorf("%w: job %s has no application URL", apperr.ErrInvalidInput, job.ID), false)
	}

	site := ratelimit.SiteKey(job.URL)
	reservation, err := a.deps.Limiter.Reserve(site)
	if err != nil {
		a.deps.Activity.Warn(models.ServiceTracking, job.ID,
			"Prefill for %s deferred: %v", describe(job), err)
		return fmt.Errorf("job %s: %w", job.ID, err)
	}

	if err := a.fillForm(ctx, run, site); err != nil {
		reservation.Cancel()
		if ctx.Err() != nil {
			return a.interrupted(ctx, run, models.StatusPrefilling, err, false)
		}
		return a.fail(ctx, run, models.StatusPrefilling, err, false)
	}

	if a.deps.History != nil {
		if err := a.deps.History.RecordPrefill(context.WithoutCancel(ctx), site, job.ID, a.now()); err != nil {
			a.logger.Warn("recording prefill failed", zap.String(logger.FieldSite, site), zap.Error(err))
		}
	}

	if err := a.transition(ctx, run, models.StatusPendingReview, models.LevelInfo,
		"Application for %s prefilled and awaiting human review (not submitted)", describe(job)); err != nil {
		return err
	}
	a.notify(ctx, run)
	return nil
}

// fillForm runs one backend session: open, navigate, fill each field, upload the resume.
// The session is always closed, and stops at the first failing step.
func (a *Automator) fillForm(ctx context.Context, run *Run, site string) error {
	job := run.Job
	budget := a.retries

	var state []byte
	if a.deps.Sessions != nil {
		loaded, err := a.deps.Sessions.LoadSession(ctx, site)
		if err != nil {
			a.logger.Warn("loading saved session failed", zap.String(logger.FieldSite, site), zap.Error(err))
		} else {
			state = loaded
		}
	}

	defer a.closeSession(ctx, site)

	if err := a.step(ctx, &budget, applicator.OpOpen, site, func(ctx context.Context) error {
		return a.deps.Backend.Open(ctx, site, state)
	}); err != nil {
		return err
	}

	if err := a.step(ctx, &budget, applicator.OpNavigate, job.URL, func(ctx context.Context) error {
		return a.deps.Backend.Navigate(ctx, job.URL)
	}); err != nil {
		return err
	}

	plan := applicator.PlanFor(job, run.Profile)
	a.logger.Debug("form plan", append(logger.Job(job.ID, job.Company),
		zap.String("source", plan.Source), zap.Int("fields", len(plan.Fields)))...)

	for _, field := range plan.Fields {
		if err := a.step(ctx, &budget, applicator.OpFill, field.Locator, func(ctx context.Context) error {
			return a.deps.Backend.FillField(ctx, field.Locator, field.Value)
		}); err != nil {
			return err
		}
	}

	if run.ResumePath != "" && plan.ResumeLocator != "" {
		if err := a.step(ctx, &budget, applicator.OpUpload, plan.ResumeLocator, func(ctx context.Context) error {
			return a.deps.Backend.UploadFile(ctx, plan.ResumeLocator, run.ResumePath)
		}); err != nil {
			return err
		}
	}
	return nil
}

// step runs one backend call under the step timeout, retrying a retryable
// failure while the stage budget lasts.
func (a *Automator) step(ctx context.Context, budget *int, op, locator string, call func(context.Context) error) error {
	for {
		stepCtx, cancel := context.WithTimeout(ctx, a.stepTimeout)
		err := call(stepCtx)
		cancel()
		if err == nil {
			return nil
		}

		if ctx.Err() == nil && *budget > 0 && applicator.Retryable(err) {
			*budget--
			a.logger.Debug("retrying automation step",
				zap.String(logger.FieldStage, op), zap.String("locator", locator), zap.Error(err))
			continue
		}
		return &applicator.StageError{Op: op, Locator: locator, Err: err}
	}
}

// closeSession ends the backend session and keeps its state for the next visit to site.
func (a *Automator) closeSession(ctx context.Context, site string) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()

	state, err := a.deps.Backend.Close(closeCtx)
	if err != nil {
		a.logger.Warn("closing automation session failed", zap.String(logger.FieldSite, site), zap.Error(err))
		return
	}
	if a.deps.Sessions == nil || len(state) == 0 {
		return
	}
	if err := a.deps.Sessions.SaveSession(closeCtx, site, state); err != nil {
		a.logger.Warn("saving session failed", zap.String(logger.FieldSite, site), zap.Error(err))
	}
}

func (a *Automator) notify(ctx context.Context, run *Run) {
	if a.deps.Notifier == nil {
		return
	}
	if err := a.deps.Notifier.NotifyPendingReview(ctx, run.Job, run.Resume); err != nil {
		a.deps.Activity.Warn(models.ServiceTracking, run.Job.ID,
			"Review notification for %s failed: %v", describe(run.Job), err)
	}
}
