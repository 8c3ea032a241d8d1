package matcher

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"

	"github.com/khrees2412/applyflow/internal/textutil"
	"github.com/khrees2412/applyflow/pkg/models"
)

// heuristicScore calculates how well a job matches a profile without a gateway.
// Returns a score between 0 and 100.
func heuristicScore(profile *models.Profile, job *models.Job) (int, string) {
	score := 0.0

	// Skills match (40% weight)
	skillScore, matched := matchSkills(job, profile.Skills)
	score += skillScore * 0.4

	// Experience match (30% weight)
	score += matchExperience(job, profile.Experience) * 0.3

	// Location preference (15% weight)
	score += matchLocation(job, profile.Location) * 0.15

	// Job title keywords (15% weight)
	score += matchTitle(job, profile.Experience) * 0.15

	reasoning := fmt.Sprintf("Simulated match score: %d of %d skills appear in the job description.", matched, len(profile.Skills))
	return clamp(score * 100), reasoning
}

// matchSkills checks how many profile skills appear in the job description
func matchSkills(job *models.Job, skills []string) (float64, int) {
	if job.Description == "" || len(skills) == 0 {
		return 0.5, 0 // Neutral if nothing to compare
	}

	desc := fold(job.Description)
	matched := 0
	for _, skill := range skills {
		if skill = fold(strings.TrimSpace(skill)); skill != "" && strings.Contains(desc, skill) {
			matched++
		}
	}

	return float64(matched) / float64(len(skills)), matched
}

// matchExperience checks how many experience entries share terms with the job
func matchExperience(job *models.Job, experience []string) float64 {
	if job.Description == "" || len(experience) == 0 {
		return 0.5
	}

	jobTerms := textutil.TokenSet(job.Title, job.Description)
	matched := 0
	for _, entry := range experience {
		if textutil.TokenSet(entry).Intersect(jobTerms).Cardinality() > 0 {
			matched++
		}
	}

	return float64(matched) / float64(len(experience))
}

// matchLocation checks if the job location matches the candidate's
func matchLocation(job *models.Job, location string) float64 {
	if job.Location == "" || location == "" {
		return 0.5 // Neutral if no location specified
	}

	jobLoc := fold(job.Location)
	userLoc := fold(location)

	if strings.Contains(jobLoc, userLoc) || strings.Contains(userLoc, jobLoc) {
		return 1.0
	}

	if strings.Contains(jobLoc, "remote") {
		return 0.8
	}

	// Partial match (same city/state)
	for _, jobPart := range strings.Fields(jobLoc) {
		for _, userPart := range strings.Fields(userLoc) {
			if len(jobPart) > 3 && jobPart == userPart {
				return 0.6
			}
		}
	}

	return 0.3
}

// matchTitle checks if the job title terms show up in the candidate's experience
func matchTitle(job *models.Job, experience []string) float64 {
	titleTerms := textutil.Tokenize(job.Title)
	if len(titleTerms) == 0 || len(experience) == 0 {
		return 0.5
	}

	matched := 0
	for _, entry := range experience {
		entryTerms := textutil.TokenSet(entry)
		for _, term := range titleTerms {
			if entryTerms.Contains(term) {
				matched++
				break
			}
		}
	}

	return float64(matched) / float64(len(experience))
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// clamp bounds score to [0,100] before rounding so huge values cannot overflow int.
func clamp(score float64) int {
	return int(math.Round(min(max(score, 0), 100)))
}
