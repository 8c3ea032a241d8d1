package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/khrees2412/applyflow/internal/apperr"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ApplicationStatus
		expected bool
	}{
		{StatusQueued, StatusAnalyzing, true},
		{StatusAnalyzing, StatusTailoring, true},
		{StatusTailoring, StatusPrefilling, true},
		{StatusPrefilling, StatusPendingReview, true},
		{StatusPendingReview, StatusApplied, true},
		{StatusApplied, StatusInterview, true},
		{StatusQueued, StatusTailoring, false},
		{StatusPrefilling, StatusApplied, false},
		{StatusTailoring, StatusAnalyzing, false},
		{StatusQueued, StatusRejected, true},
		{StatusPendingReview, StatusRejected, true},
		{StatusApplied, StatusRejected, false},
		{StatusRejected, StatusQueued, false},
		{StatusInterview, StatusRejected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.expected {
				t.Errorf("%s.CanTransition(%s) = %v, expected %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestStatusClasses(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.Valid(), s)
		assert.False(t, s.IsActive() && s.IsTerminal(), s)
	}
	assert.False(t, ApplicationStatus("pending").Valid())
	assert.True(t, StatusPrefilling.IsActive())
	assert.False(t, StatusPendingReview.IsActive())
	assert.False(t, StatusPendingReview.IsTerminal())

	next, ok := StatusPrefilling.Next()
	assert.True(t, ok)
	assert.Equal(t, StatusPendingReview, next)
	_, ok = StatusRejected.Next()
	assert.False(t, ok)
}

func TestStatusCountsTotal(t *testing.T) {
	counts := StatusCounts{StatusQueued: 3, StatusApplied: 2, StatusRejected: 0}
	assert.Equal(t, 5, counts.Total())
	assert.Equal(t, 0, StatusCounts{}.Total())
}

func testProfile() *Profile {
	return &Profile{
		ID: "alex",
		Projects: []Project{
			{ID: "p1", Description: []string{"a"}},
			{ID: "p2", Description: []string{"b"}},
			{ID: "p3", Description: []string{"c"}},
			{ID: "p4", Description: []string{"d"}},
		},
	}
}

func TestProfileValidate(t *testing.T) {
	assert.NoError(t, testProfile().Validate())

	var nilProfile *Profile
	assert.ErrorIs(t, nilProfile.Validate(), apperr.ErrInvalidInput)
	assert.ErrorIs(t, (&Profile{}).Validate(), apperr.ErrInvalidInput)

	dup := testProfile()
	dup.Projects[1].ID = "p1"
	assert.ErrorContains(t, dup.Validate(), "duplicate project id")

	empty := testProfile()
	empty.Projects[2].Description = nil
	assert.ErrorContains(t, empty.Validate(), `project "p3" has no description bullets`)
}

func TestJobValidate(t *testing.T) {
	var nilJob *Job
	assert.ErrorIs(t, nilJob.Validate(), apperr.ErrInvalidInput)
	assert.ErrorIs(t, (&Job{}).Validate(), apperr.ErrInvalidInput)
	assert.ErrorIs(t, (&Job{ID: "j", Status: "pending"}).Validate(), apperr.ErrInvalidInput)
	assert.NoError(t, (&Job{ID: "j"}).Validate())
	assert.NoError(t, (&Job{ID: "j", Status: StatusQueued}).Validate())
}

func TestTailoredResumeValidate(t *testing.T) {
	profile := testProfile()

	ok := &TailoredResume{
		SelectedProjectIDs:           []string{"p1", "p3"},
		RewrittenProjectDescriptions: map[string][]string{"p1": {"x"}},
	}
	assert.NoError(t, ok.Validate(profile))

	tooMany := &TailoredResume{SelectedProjectIDs: []string{"p1", "p2", "p3", "p4"}}
	assert.ErrorIs(t, tooMany.Validate(profile), apperr.ErrSchemaViolation)

	unknown := &TailoredResume{SelectedProjectIDs: []string{"p9"}}
	assert.ErrorContains(t, unknown.Validate(profile), `selected project "p9" does not exist`)

	stray := &TailoredResume{
		SelectedProjectIDs:           []string{"p1"},
		RewrittenProjectDescriptions: map[string][]string{"p2": {"x"}},
	}
	assert.ErrorIs(t, stray.Validate(profile), apperr.ErrSchemaViolation)

	var nilResume *TailoredResume
	assert.ErrorIs(t, nilResume.Validate(profile), apperr.ErrSchemaViolation)

	p := profile.FindProject("p2")
	if assert.NotNil(t, p) {
		assert.Equal(t, "b", p.Description[0])
	}
	assert.Nil(t, profile.FindProject("nope"))
}
