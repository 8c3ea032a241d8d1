package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khrees2412/applyflow/internal/applicator"
	"github.com/khrees2412/applyflow/internal/config"
	"github.com/khrees2412/applyflow/internal/pipeline"
	"github.com/khrees2412/applyflow/internal/ratelimit"
	"github.com/khrees2412/applyflow/pkg/models"
)

func newTestApp(t *testing.T, dir string) *App {
	t.Helper()
	t.Setenv("APPLYFLOW_SIMULATION", "true")

	cfg, err := config.Load(dir)
	require.NoError(t, err)

	a, err := build(context.Background(), cfg, applicator.NewStub())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func testProfile() *models.Profile {
	return &models.Profile{
		ID:     "alex",
		Name:   "Alex Dev",
		Email:  "alex.dev@example.com",
		Skills: []string{"Python", "React"},
		Projects: []models.Project{
			{ID: "p1", Title: "AI Chatbot Platform", TechStack: []string{"Python", "React"},
				Description: []string{"Developed a RAG-based chatbot for customer support."}},
			{ID: "p2", Title: "Order Service", TechStack: []string{"Go"},
				Description: []string{"Built a scalable order processing system."}},
		},
	}
}

func TestPipelineAgainstStore(t *testing.T) {
	dir := t.TempDir()
	a := newTestApp(t, dir)
	ctx := context.Background()

	require.Nil(t, a.Gateway)
	profile := testProfile()
	require.NoError(t, a.Store.SaveProfile(ctx, profile))

	job := &models.Job{
		ID:          "job-1",
		Title:       "AI Engineer",
		Company:     "Acme",
		URL:         "https://jobs.lever.co/acme/1",
		Source:      "lever",
		Description: "Python and React for LLM products.",
	}
	require.NoError(t, a.Store.CreateJob(ctx, job))

	require.NoError(t, a.Automator.Process(ctx, &pipeline.Run{Job: job, Profile: profile}))

	stored, err := a.Store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingReview, stored.Status)
	require.NotNil(t, stored.MatchScore)

	resume, err := a.Store.LatestTailoredResume(ctx, "job-1")
	require.NoError(t, err)
	assert.NotEmpty(t, resume.SelectedProjectIDs)

	entries, err := a.Store.ListActivity(ctx, "job-1", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	files, err := os.ReadDir(a.Config.ResumeDir())
	require.NoError(t, err)
	assert.Len(t, files, 1)

	// A second process sees the prefill against the lever.co budget.
	b := newTestApp(t, dir)
	assert.Equal(t, ratelimit.DefaultLimit-1, b.Limiter.Remaining("lever.co"))
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	a := &App{}
	assert.Same(t, a, FromContext(WithApp(context.Background(), a)))
}
