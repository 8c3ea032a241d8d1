// Package tailor selects the projects most relevant to a job and has their
// bullets rewritten, keeping the result within the profile's real projects.
package tailor

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khrees2412/applyflow/internal/activity"
	"github.com/khrees2412/applyflow/internal/ai"
	"github.com/khrees2412/applyflow/internal/apperr"
	"github.com/khrees2412/applyflow/internal/logger"
	"github.com/khrees2412/applyflow/internal/textutil"
	"github.com/khrees2412/applyflow/pkg/models"
)

// MaxProjects is the hard cap on projects in a tailored resume.
const MaxProjects = 3

const defaultTimeout = 60 * time.Second

//go:embed prompt.md
var promptTemplate string

var resumeSchema = &ai.Schema{
	Name: "tailored_resume",
	Type: ai.TypeObject,
	Properties: map[string]*ai.Schema{
		"rewrittenObjective": {Type: ai.TypeString},
		"selectedProjectIds": {Type: ai.TypeArray, Items: &ai.Schema{Type: ai.TypeString}},
		"rewrittenProjectDescriptions": {
			Type: ai.TypeArray,
			Items: &ai.Schema{
				Type: ai.TypeObject,
				Properties: map[string]*ai.Schema{
					"projectId": {Type: ai.TypeString},
					"bullets":   {Type: ai.TypeArray, Items: &ai.Schema{Type: ai.TypeString}},
				},
				Required: []string{"projectId", "bullets"},
			},
		},
		"extractedKeywords": {Type: ai.TypeArray, Items: &ai.Schema{Type: ai.TypeString}},
		"matchAnalysis":     {Type: ai.TypeString},
	},
	Required: []string{"rewrittenObjective", "rewrittenProjectDescriptions"},
}

// Tailor produces TailoredResume values.
type Tailor struct {
	gateway  ai.Gateway
	activity *activity.Log
	logger   *zap.Logger
	timeout  time.Duration
	simulate bool

	now   func() time.Time
	newID func() string
}

// Option configures a Tailor
type Option func(*Tailor)

// WithTimeout bounds the gateway call
func WithTimeout(d time.Duration) Option {
	return func(t *Tailor) { t.timeout = d }
}

// WithLogger sets the zap logger
func WithLogger(l *zap.Logger) Option {
	return func(t *Tailor) { t.logger = logger.OrNop(l) }
}

// WithActivityLog records start and outcome entries in the activity log
func WithActivityLog(l *activity.Log) Option {
	return func(t *Tailor) { t.activity = l }
}

// WithSimulation rewrites bullets locally instead of calling the gateway
func WithSimulation(on bool) Option {
	return func(t *Tailor) { t.simulate = on }
}

// WithClock overrides the GeneratedAt source
func WithClock(now func() time.Time) Option {
	return func(t *Tailor) { t.now = now }
}

// New creates a Tailor. gateway may be nil only in simulation mode.
func New(gateway ai.Gateway, opts ...Option) *Tailor {
	t := &Tailor{
		gateway: gateway,
		logger:  zap.NewNop(),
		timeout: defaultTimeout,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tailor builds a resume variant for job from profile's most relevant projects.
// Invalid input fails immediately. Gateway failures come back as
// ErrGatewayUnavailable, ErrGatewayTimeout or ErrSchemaViolation.
func (t *Tailor) Tailor(ctx context.Context, profile *models.Profile, job *models.Job) (*models.TailoredResume, error) {
	if err := validateInput(profile, job); err != nil {
		jobID := ""
		if job != nil {
			jobID = job.ID
		}
		t.logError(jobID, err)
		return nil, err
	}

	t.logInfo(job.ID, "Tailoring resume for %s", describe(job))

	ranked := Rank(profile, job)
	selected := Select(ranked, MaxProjects)

	t.logger.Debug("projects ranked",
		append(logger.Job(job.ID, job.Company), zap.Strings("selected", selected))...)

	var (
		value ai.Value
		err   error
	)
	if t.simulate || t.gateway == nil {
		value = simulate(profile, job, selected)
	} else {
		value, err = t.gateway.Generate(ctx, buildPrompt(profile, job, selected), resumeSchema, t.timeout)
		if err != nil {
			err = ai.AsAppError(err)
			t.logError(job.ID, err)
			return nil, fmt.Errorf("tailor %s: %w", job.ID, err)
		}
	}

	res, err := assemble(value, profile, job, selected)
	if err != nil {
		t.logError(job.ID, err)
		return nil, fmt.Errorf("tailor %s: %w", job.ID, err)
	}

	resume := &models.TailoredResume{
		ID:                           t.newID(),
		JobID:                        job.ID,
		ProfileID:                    profile.ID,
		RewrittenObjective:           res.objective,
		SelectedProjectIDs:           selected,
		RewrittenProjectDescriptions: res.descriptions,
		ExtractedKeywords:            res.keywords,
		MatchAnalysis:                res.analysis,
		Repairs:                      res.repairs,
		GeneratedAt:                  t.now(),
	}
	if err := resume.Validate(profile); err != nil {
		t.logError(job.ID, err)
		return nil, fmt.Errorf("tailor %s: %w", job.ID, err)
	}

	if len(res.repairs) > 0 {
		t.logger.Debug("tailored resume repaired",
			append(logger.Job(job.ID, job.Company), zap.Strings("repairs", res.repairs))...)
	}
	t.logInfo(job.ID, "Tailored resume ready for %s: projects %s, %d repairs",
		describe(job), strings.Join(selected, ", "), len(res.repairs))

	return resume, nil
}

func validateInput(profile *models.Profile, job *models.Job) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	if err := job.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(job.Description) == "" {
		return fmt.Errorf("%w: job %s has no description", apperr.ErrInvalidInput, job.ID)
	}
	return nil
}

func (t *Tailor) logInfo(jobID, format string, args ...any) {
	if t.activity != nil {
		t.activity.Info(models.ServiceTailoring, jobID, format, args...)
	}
}

func (t *Tailor) logError(jobID string, err error) {
	t.logger.Warn("tailoring failed", zap.String(logger.FieldJobID, jobID), zap.Error(err))
	if t.activity == nil {
		return
	}
	if errors.Is(err, apperr.ErrGatewayTimeout) {
		t.activity.Warn(models.ServiceTailoring, jobID, "Tailoring timed out: %v", err)
		return
	}
	t.activity.Error(models.ServiceTailoring, jobID, "Tailoring failed (%s): %v", apperr.Kind(err), err)
}

type promptProject struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	TechStack   []string `json:"techStack"`
	Description []string `json:"description"`
}

func buildPrompt(profile *models.Profile, job *models.Job, selected []string) string {
	projects := make([]promptProject, 0, len(selected))
	for _, id := range selected {
		p := profile.FindProject(id)
		projects = append(projects, promptProject{ID: p.ID, Title: p.Title, TechStack: p.TechStack, Description: p.Description})
	}

	projectsJSON, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		projectsJSON = []byte("[]")
	}

	r := strings.NewReplacer(
		"{{PROJECT_IDS}}", strings.Join(selected, ", "),
		"{{JOB_TITLE}}", job.Title,
		"{{JOB_COMPANY}}", job.Company,
		"{{JOB_DESCRIPTION}}", job.Description,
		"{{PROJECTS_JSON}}", string(projectsJSON),
		"{{OBJECTIVE}}", profile.Objective,
	)
	return r.Replace(promptTemplate)
}

// simulate produces a deterministic generation result without a gateway.
func simulate(profile *models.Profile, job *models.Job, selected []string) ai.Value {
	descriptions := make([]any, 0, len(selected))
	for _, id := range selected {
		p := profile.FindProject(id)
		bullets := make([]any, 0, len(p.Description))
		for _, d := range p.Description {
			bullets = append(bullets, "Optimized: "+d)
		}
		descriptions = append(descriptions, map[string]any{"projectId": id, "bullets": bullets})
	}

	keywords := textutil.TopKeywords(job.Description, keywordCount)
	ids := make([]any, 0, len(selected))
	for _, id := range selected {
		ids = append(ids, id)
	}
	kw := make([]any, 0, len(keywords))
	for _, k := range keywords {
		kw = append(kw, k)
	}

	return ai.Value{
		"rewrittenObjective":           fmt.Sprintf("To leverage deep experience in %s roles to drive innovation at %s.", job.Title, companyOr(job, "a growing team")),
		"selectedProjectIds":           ids,
		"rewrittenProjectDescriptions": descriptions,
		"extractedKeywords":            kw,
		"matchAnalysis":                "Simulated analysis: strongest overlap on " + strings.Join(keywords, ", ") + ".",
	}
}

func describe(job *models.Job) string {
	if job.Company == "" {
		return job.Title
	}
	return job.Title + " at " + job.Company
}

func companyOr(job *models.Job, fallback string) string {
	if job.Company == "" {
		return fallback
	}
	return job.Company
}
