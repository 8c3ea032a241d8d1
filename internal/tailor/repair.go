package tailor

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/khrees2412/applyflow/internal/ai"
	"github.com/khrees2412/applyflow/internal/apperr"
	"github.com/khrees2412/applyflow/internal/textutil"
	"github.com/khrees2412/applyflow/pkg/models"
)

const keywordCount = 5

// draft is the loosely typed generation result before repair.
type draft struct {
	RewrittenObjective           any `mapstructure:"rewrittenObjective"`
	SelectedProjectIDs           any `mapstructure:"selectedProjectIds"`
	RewrittenProjectDescriptions any `mapstructure:"rewrittenProjectDescriptions"`
	ExtractedKeywords            any `mapstructure:"extractedKeywords"`
	MatchAnalysis                any `mapstructure:"matchAnalysis"`
}

type projectBullets struct {
	ProjectID string   `mapstructure:"projectId"`
	Bullets   []string `mapstructure:"bullets"`
}

// result is the repaired content of a tailored resume.
type result struct {
	objective    string
	descriptions map[string][]string
	keywords     []string
	analysis     string
	repairs      []string
}

func (r *result) repair(format string, args ...any) {
	r.repairs = append(r.repairs, fmt.Sprintf(format, args...))
}

// assemble validates a generation result against the ranked selection and
// repairs what it can. Missing required fields are a schema violation.
func assemble(value ai.Value, profile *models.Profile, job *models.Job, selected []string) (*result, error) {
	var d draft
	if err := mapstructure.Decode(value, &d); err != nil {
		return nil, fmt.Errorf("%w: decode tailored resume: %w", apperr.ErrSchemaViolation, err)
	}

	objective := ai.CoerceString(d.RewrittenObjective)
	if objective == "" {
		return nil, fmt.Errorf("%w: missing rewrittenObjective", apperr.ErrSchemaViolation)
	}
	if d.RewrittenProjectDescriptions == nil {
		return nil, fmt.Errorf("%w: missing rewrittenProjectDescriptions", apperr.ErrSchemaViolation)
	}

	entries, err := decodeDescriptions(d.RewrittenProjectDescriptions)
	if err != nil {
		return nil, err
	}

	res := &result{
		objective:    objective,
		descriptions: make(map[string][]string, len(selected)),
		analysis:     ai.CoerceString(d.MatchAnalysis),
	}

	isSelected := make(map[string]bool, len(selected))
	for _, id := range selected {
		isSelected[id] = true
	}

	checkSelection(res, d.SelectedProjectIDs, profile, selected, isSelected)

	for _, entry := range entries {
		id := strings.TrimSpace(entry.ProjectID)
		switch {
		case profile.FindProject(id) == nil:
			res.repair("dropped bullets for unknown project %q", id)
		case !isSelected[id]:
			res.repair("dropped bullets for unselected project %q", id)
		case res.descriptions[id] != nil:
			res.repair("dropped duplicate bullets for project %q", id)
		default:
			if bullets := ai.CoerceStrings(entry.Bullets); len(bullets) > 0 {
				res.descriptions[id] = bullets
			}
		}
	}

	for _, id := range selected {
		if len(res.descriptions[id]) == 0 {
			res.descriptions[id] = append([]string(nil), profile.FindProject(id).Description...)
			res.repair("kept original bullets for project %q", id)
		}
	}

	res.keywords = dedupe(ai.CoerceStrings(d.ExtractedKeywords))
	switch {
	case len(res.keywords) == 0:
		res.keywords = textutil.TopKeywords(job.Description, keywordCount)
		res.repair("extracted keywords locally")
	case len(res.keywords) > keywordCount:
		res.repair("trimmed %d keywords to %d", len(res.keywords), keywordCount)
		res.keywords = res.keywords[:keywordCount]
	}

	return res, nil
}

// checkSelection records how the generated selection differs from the ranked one.
// The ranked selection always wins.
func checkSelection(res *result, raw any, profile *models.Profile, selected []string, isSelected map[string]bool) {
	if raw == nil {
		return
	}

	seen := make(map[string]bool)
	kept := 0
	for _, id := range ai.CoerceStrings(raw) {
		switch {
		case profile.FindProject(id) == nil:
			res.repair("dropped unknown project id %q", id)
		case !isSelected[id]:
			res.repair("dropped unselected project id %q", id)
		case seen[id]:
			res.repair("dropped duplicate project id %q", id)
		default:
			seen[id] = true
			kept++
		}
	}
	if kept < len(selected) {
		res.repair("restored %d selected project ids", len(selected)-kept)
	}
}

// decodeDescriptions accepts either [{projectId, bullets}] or {projectId: bullets}.
func decodeDescriptions(raw any) ([]projectBullets, error) {
	switch v := raw.(type) {
	case []any:
		var out []projectBullets
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &out,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(v); err != nil {
			return nil, fmt.Errorf("%w: rewrittenProjectDescriptions: %w", apperr.ErrSchemaViolation, err)
		}
		return out, nil
	case map[string]any:
		out := make([]projectBullets, 0, len(v))
		for _, id := range slices.Sorted(maps.Keys(v)) {
			out = append(out, projectBullets{ProjectID: id, Bullets: ai.CoerceStrings(v[id])})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: rewrittenProjectDescriptions has type %T", apperr.ErrSchemaViolation, raw)
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}
