package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/khrees2412/applyflow/internal/activity"
	"github.com/khrees2412/applyflow/internal/apperr"
	"github.com/khrees2412/applyflow/pkg/models"
)

// createTestDB creates a temporary test database
func createTestDB(t testing.TB) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newJob(id, url string) *models.Job {
	return &models.Job{
		ID:          id,
		Title:       "Software Engineer",
		Company:     "Acme Inc",
		Location:    "Remote",
		URL:         url,
		Source:      "manual",
		Description: "Build Go services",
	}
}

// TestCreateJob tests job creation with unique constraint
func TestCreateJob(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	job := newJob("j1", "https://example.com/job/123")
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	if job.Status != models.StatusQueued {
		t.Errorf("new job status = %s, expected %s", job.Status, models.StatusQueued)
	}

	// Try to create duplicate (should fail)
	dup := newJob("j2", "https://example.com/job/123")
	dup.Title = "Different Title"
	if err := store.CreateJob(ctx, dup); !errors.Is(err, apperr.ErrDuplicateURL) {
		t.Errorf("duplicate URL error = %v, expected ErrDuplicateURL", err)
	}

	// Jobs without a URL never collide
	for _, id := range []string{"n1", "n2"} {
		if err := store.CreateJob(ctx, newJob(id, "")); err != nil {
			t.Fatalf("failed to create job without url: %v", err)
		}
	}
}

// TestGetJob tests job retrieval
func TestGetJob(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	score := 73
	job := newJob("j1", "https://example.com/job/1")
	job.MatchScore = &score
	job.MatchReasoning = "Strong Go background"
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	retrieved, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if retrieved.Title != job.Title || retrieved.Company != job.Company || retrieved.URL != job.URL {
		t.Error("retrieved job data doesn't match")
	}
	if retrieved.MatchScore == nil || *retrieved.MatchScore != 73 {
		t.Errorf("match score = %v, expected 73", retrieved.MatchScore)
	}

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing job error = %v, expected ErrNotFound", err)
	}

	byURL, err := store.GetJobByURL(ctx, "https://example.com/job/1")
	if err != nil || byURL.ID != "j1" {
		t.Errorf("GetJobByURL = %v, %v", byURL, err)
	}
}

func TestFindJob(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"4f0c1a", "4f9b22", "7d_x"} {
		if err := store.CreateJob(ctx, newJob(id, "")); err != nil {
			t.Fatalf("failed to create job %s: %v", id, err)
		}
	}

	tests := []struct {
		ref     string
		want    string
		wantErr error
	}{
		{ref: "4f0c1a", want: "4f0c1a"},
		{ref: "4f0", want: "4f0c1a"},
		{ref: "7d_", want: "7d_x"},
		{ref: "4f", wantErr: apperr.ErrInvalidInput},
		{ref: "7d%", wantErr: apperr.ErrNotFound},
		{ref: "zz", wantErr: apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			job, err := store.FindJob(ctx, tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("FindJob(%q) error = %v, expected %v", tt.ref, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindJob(%q) failed: %v", tt.ref, err)
			}
			if job.ID != tt.want {
				t.Errorf("FindJob(%q) = %s, expected %s", tt.ref, job.ID, tt.want)
			}
		})
	}
}

func TestSaveJobUpdatesStatus(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	job := newJob("j1", "https://example.com/job/1")
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("failed to insert job: %v", err)
	}

	job.Status = models.StatusPendingReview
	job.UpdatedAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("failed to update job: %v", err)
	}

	retrieved, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if retrieved.Status != models.StatusPendingReview {
		t.Errorf("status = %s, expected %s", retrieved.Status, models.StatusPendingReview)
	}
	if !retrieved.UpdatedAt.Equal(job.UpdatedAt) {
		t.Errorf("updated_at = %v, expected %v", retrieved.UpdatedAt, job.UpdatedAt)
	}
}

// TestListJobs tests listing and counting jobs
func TestListJobs(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		job := newJob(fmt.Sprintf("j%d", i), fmt.Sprintf("https://example.com/job/%d", i))
		if i == 3 {
			job.Status = models.StatusApplied
		}
		if err := store.CreateJob(ctx, job); err != nil {
			t.Fatalf("failed to create job %d: %v", i, err)
		}
	}

	jobs, err := store.ListJobs(ctx, "")
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("expected 3 jobs, got %d: %+v", len(jobs), jobs)
	}

	applied, err := store.ListJobs(ctx, models.StatusApplied)
	if err != nil {
		t.Fatalf("failed to list applied jobs: %v", err)
	}
	if len(applied) != 1 || applied[0].ID != "j3" {
		t.Errorf("applied jobs = %+v", applied)
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("failed to count jobs: %v", err)
	}
	if counts[models.StatusQueued] != 2 || counts[models.StatusApplied] != 1 || counts[models.StatusRejected] != 0 {
		t.Errorf("unexpected counts: %v", counts)
	}
	if len(counts) != len(models.AllStatuses) || counts.Total() != 3 {
		t.Errorf("counts should cover every status: %v", counts)
	}
}

// TestDeleteJobCascade tests that tailored resumes are deleted with their job
func TestDeleteJobCascade(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	if err := store.CreateJob(ctx, newJob("j1", "")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	resume := &models.TailoredResume{
		ID:                           "r1",
		JobID:                        "j1",
		ProfileID:                    "alex",
		RewrittenObjective:           "Ship reliable Go services.",
		SelectedProjectIDs:           []string{"p1"},
		RewrittenProjectDescriptions: map[string][]string{"p1": {"Built it."}},
		GeneratedAt:                  time.Now(),
	}
	if err := store.SaveTailoredResume(ctx, resume); err != nil {
		t.Fatalf("failed to save resume: %v", err)
	}

	latest, err := store.LatestTailoredResume(ctx, "j1")
	if err != nil {
		t.Fatalf("failed to get resume: %v", err)
	}
	if latest.RewrittenObjective != resume.RewrittenObjective || latest.RewrittenProjectDescriptions["p1"][0] != "Built it." {
		t.Errorf("resume round trip mismatch: %+v", latest)
	}

	if err := store.DeleteJob(ctx, "j1"); err != nil {
		t.Fatalf("failed to delete job: %v", err)
	}
	if _, err := store.LatestTailoredResume(ctx, "j1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("resume should be deleted when job is deleted, got %v", err)
	}
	if err := store.DeleteJob(ctx, "j1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete error = %v, expected ErrNotFound", err)
	}
}

// TestForeignKeyConstraint verifies foreign keys are enabled
func TestForeignKeyConstraint(t *testing.T) {
	store := createTestDB(t)

	_, err := store.db.Exec(`
		INSERT INTO tailored_resumes (id, job_id, data, generated_at) VALUES ('r1', 'missing', '{}', CURRENT_TIMESTAMP)
	`)
	if err == nil {
		t.Error("should have failed due to foreign key constraint")
	}
}

func TestProfiles(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	if _, err := store.CurrentProfile(ctx); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("empty store error = %v, expected ErrNotFound", err)
	}

	profile := &models.Profile{
		ID:       "alex",
		Name:     "Alex Dev",
		Skills:   []string{"Go"},
		Projects: []models.Project{{ID: "p1", Title: "CLI", Description: []string{"Wrote it."}}},
	}
	if err := store.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("failed to save profile: %v", err)
	}
	profile.Name = "Alex Q Dev"
	if err := store.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("failed to update profile: %v", err)
	}

	current, err := store.CurrentProfile(ctx)
	if err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}
	if current.Name != "Alex Q Dev" || current.Projects[0].ID != "p1" {
		t.Errorf("profile round trip mismatch: %+v", current)
	}

	if err := store.SaveProfile(ctx, &models.Profile{}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("profile without id error = %v", err)
	}
}

func TestActivitySink(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	log := activity.New(activity.WithSink(store))
	log.Info(models.ServiceTracking, "j1", "Analyzing match for %s", "Engineer")
	log.Warn(models.ServiceMatching, "j1", "Match analysis failed")
	log.Info(models.ServiceIngest, "", "Ingested 1 new jobs")

	all, err := store.ListActivity(ctx, "", 0)
	if err != nil {
		t.Fatalf("failed to list activity: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	for i, e := range log.Entries() {
		if all[i].ID != e.ID || all[i].Message != e.Message || all[i].Level != e.Level {
			t.Errorf("entry %d = %+v, expected %+v", i, all[i], e)
		}
	}

	forJob, err := store.ListActivity(ctx, "j1", 1)
	if err != nil {
		t.Fatalf("failed to list job activity: %v", err)
	}
	if len(forJob) != 1 || forJob[0].Level != models.LevelWarn {
		t.Errorf("newest entry for j1 = %+v", forJob)
	}

	removed, err := store.PruneActivity(ctx, 1)
	if err != nil || removed != 2 {
		t.Errorf("PruneActivity = %d, %v", removed, err)
	}
}

func TestSessions(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	state, err := store.LoadSession(ctx, "greenhouse.io")
	if err != nil || state != nil {
		t.Fatalf("LoadSession on empty store = %q, %v", state, err)
	}

	for _, s := range []string{`{"cookies":[1]}`, `{"cookies":[2]}`} {
		if err := store.SaveSession(ctx, "greenhouse.io", []byte(s)); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}
	}

	state, err = store.LoadSession(ctx, "greenhouse.io")
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	if string(state) != `{"cookies":[2]}` {
		t.Errorf("session state = %s", state)
	}
}

func TestPrefills(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{now.Add(-3 * time.Hour), now.Add(-30 * time.Minute), now.Add(-10 * time.Minute)} {
		if err := store.RecordPrefill(ctx, "lever.co", "job-1", at); err != nil {
			t.Fatalf("failed to record prefill: %v", err)
		}
	}

	prefills, err := store.PrefillsSince(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to list prefills: %v", err)
	}
	if len(prefills) != 2 {
		t.Fatalf("expected 2 prefills in the last hour, got %d", len(prefills))
	}
	if !prefills[0].At.Equal(now.Add(-30*time.Minute)) || prefills[1].Site != "lever.co" {
		t.Errorf("unexpected prefills: %+v", prefills)
	}
}

// BenchmarkCreateJob benchmarks job creation
func BenchmarkCreateJob(b *testing.B) {
	store := createTestDB(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.CreateJob(ctx, newJob(fmt.Sprintf("j%d", i), ""))
	}
}
