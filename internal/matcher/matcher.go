package matcher

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khrees2412/applyflow/internal/activity"
	"github.com/khrees2412/applyflow/internal/ai"
	"github.com/khrees2412/applyflow/internal/apperr"
	"github.com/khrees2412/applyflow/internal/logger"
	"github.com/khrees2412/applyflow/pkg/models"
)

//go:embed prompt.md
var promptTemplate string

const defaultTimeout = 30 * time.Second

var assessmentSchema = &ai.Schema{
	Name: "match_assessment",
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"score":     {Type: ai.TypeInteger, Description: "fit between 0 and 100"},
		"reasoning": {Type: ai.TypeString, Description: "short explanation of the score"},
	},
	Required: []string{"score", "reasoning"},
}

// Assessment is the result of scoring one job.
// Fallback is set when the gateway failed and Score is the fail-closed zero.
type Assessment struct {
	Score     int
	Reasoning string
	Fallback  bool
	Err       error
}

// Apply copies the score and reasoning onto job.
func (a *Assessment) Apply(job *models.Job) {
	score := a.Score
	job.MatchScore = &score
	job.MatchReasoning = a.Reasoning
}

// Matcher scores jobs against a profile.
type Matcher struct {
	gateway  ai.Gateway
	activity *activity.Log
	logger   *zap.Logger
	timeout  time.Duration
	simulate bool
}

// Option configures a Matcher
type Option func(*Matcher)

// WithTimeout bounds each gateway call
func WithTimeout(d time.Duration) Option {
	return func(m *Matcher) { m.timeout = d }
}

// WithLogger sets the zap logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) { m.logger = logger.OrNop(l) }
}

// WithActivityLog records scoring outcomes in the activity log
func WithActivityLog(l *activity.Log) Option {
	return func(m *Matcher) { m.activity = l }
}

// WithSimulation scores with the local keyword heuristic instead of the gateway
func WithSimulation(on bool) Option {
	return func(m *Matcher) { m.simulate = on }
}

// New creates a Matcher. gateway may be nil only in simulation mode.
func New(gateway ai.Gateway, opts ...Option) *Matcher {
	m := &Matcher{
		gateway: gateway,
		logger:  zap.NewNop(),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Score rates how well job fits profile. It never fails: gateway errors and
// unparsable output produce a zero score with Fallback set.
func (m *Matcher) Score(ctx context.Context, profile *models.Profile, job *models.Job) *Assessment {
	if profile == nil || job == nil {
		return m.fallback(job, fmt.Errorf("%w: profile and job are required", apperr.ErrInvalidInput))
	}

	if m.simulate || m.gateway == nil {
		score, reasoning := heuristicScore(profile, job)
		m.record(job, score)
		return &Assessment{Score: score, Reasoning: reasoning}
	}

	m.logger.Debug("scoring job", logger.Job(job.ID, job.Company)...)

	value, err := m.gateway.Generate(ctx, buildPrompt(profile, job), assessmentSchema, m.timeout)
	if err != nil {
		return m.fallback(job, ai.AsAppError(err))
	}

	assessment, err := decodeAssessment(value)
	if err != nil {
		return m.fallback(job, err)
	}

	m.record(job, assessment.Score)
	return assessment
}

// ScoreAll scores jobs concurrently, at most concurrency at a time.
// Results line up with jobs. Only cancellation of ctx produces an error.
func (m *Matcher) ScoreAll(ctx context.Context, profile *models.Profile, jobs []*models.Job, concurrency int) ([]*Assessment, error) {
	results := make([]*Assessment, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = m.Score(gctx, profile, job)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func (m *Matcher) fallback(job *models.Job, err error) *Assessment {
	jobID := ""
	fields := []zap.Field{zap.Error(err)}
	if job != nil {
		jobID = job.ID
		fields = append(fields, logger.Job(job.ID, job.Company)...)
	}

	reasoning := fallbackReasoning(err)
	m.logger.Warn("match analysis failed, using zero score", fields...)
	if m.activity != nil {
		m.activity.Warn(models.ServiceMatching, jobID, "Match analysis failed (%s): %v", apperr.Kind(err), err)
	}

	return &Assessment{Score: 0, Reasoning: reasoning, Fallback: true, Err: err}
}

func (m *Matcher) record(job *models.Job, score int) {
	if m.activity != nil {
		m.activity.Info(models.ServiceMatching, job.ID, "Match score %d for %s", score, describe(job))
	}
}

func fallbackReasoning(err error) string {
	switch {
	case errors.Is(err, apperr.ErrGatewayTimeout):
		return "Analysis failed: the generation gateway timed out."
	case errors.Is(err, apperr.ErrSchemaViolation):
		return "Analysis failed: the generation gateway returned unparsable output."
	case errors.Is(err, apperr.ErrInvalidInput):
		return "Analysis failed: profile or job is missing."
	default:
		return "Analysis failed due to API error."
	}
}

type assessmentDraft struct {
	Score     any `mapstructure:"score"`
	Reasoning any `mapstructure:"reasoning"`
}

func decodeAssessment(value ai.Value) (*Assessment, error) {
	var draft assessmentDraft
	if err := mapstructure.Decode(value, &draft); err != nil {
		return nil, fmt.Errorf("%w: decode assessment: %w", apperr.ErrSchemaViolation, err)
	}

	score := ai.CoerceNumber(draft.Score)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return nil, fmt.Errorf("%w: score %v is not a number", apperr.ErrSchemaViolation, draft.Score)
	}

	reasoning := ai.CoerceString(draft.Reasoning)
	if reasoning == "" {
		reasoning = "No reasoning provided."
	}

	return &Assessment{
		Score:     clamp(score),
		Reasoning: reasoning,
	}, nil
}

func buildPrompt(profile *models.Profile, job *models.Job) string {
	projects := make([]string, 0, len(profile.Projects))
	for _, p := range profile.Projects {
		projects = append(projects, p.Title+": "+strings.Join(p.TechStack, ", "))
	}

	r := strings.NewReplacer(
		"{{JOB_TITLE}}", job.Title,
		"{{JOB_COMPANY}}", job.Company,
		"{{JOB_DESCRIPTION}}", job.Description,
		"{{SKILLS}}", strings.Join(profile.Skills, ", "),
		"{{EXPERIENCE}}", strings.Join(profile.Experience, "; "),
		"{{PROJECTS}}", strings.Join(projects, "; "),
	)
	return r.Replace(promptTemplate)
}

func describe(job *models.Job) string {
	if job.Company == "" {
		return job.Title
	}
	return job.Title + " at " + job.Company
}
