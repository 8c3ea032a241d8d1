package tailor

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/khrees2412/applyflow/internal/textutil"
	"github.com/khrees2412/applyflow/pkg/models"
)

const (
	techStackWeight = 2
	textWeight      = 1
)

// RankedProject is a project with its relevance to one job.
type RankedProject struct {
	Project models.Project
	Index   int // position in the profile
	Score   int
	Matched []string // job terms the project hits, sorted
}

// Rank orders the profile's projects by relevance to the job description.
// A distinct job term found in the tech stack scores 2, one found only in the
// title or bullets scores 1. Ties keep profile order.
func Rank(profile *models.Profile, job *models.Job) []RankedProject {
	jobTerms := textutil.TokenSet(job.Description)

	ranked := make([]RankedProject, 0, len(profile.Projects))
	for i, project := range profile.Projects {
		stack := textutil.TokenSet(project.TechStack...)
		text := textutil.TokenSet(append([]string{project.Title}, project.Description...)...)

		stackHits := stack.Intersect(jobTerms)
		textHits := text.Intersect(jobTerms).Difference(stackHits)

		ranked = append(ranked, RankedProject{
			Project: project,
			Index:   i,
			Score:   stackHits.Cardinality()*techStackWeight + textHits.Cardinality()*textWeight,
			Matched: sortedUnion(stackHits, textHits),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Select returns the ids of the top n ranked projects.
func Select(ranked []RankedProject, n int) []string {
	n = min(max(n, 0), len(ranked))
	ids := make([]string, 0, n)
	for _, r := range ranked[:n] {
		ids = append(ids, r.Project.ID)
	}
	return ids
}

func sortedUnion(a, b mapset.Set[string]) []string {
	out := a.Union(b).ToSlice()
	sort.Strings(out)
	return out
}
