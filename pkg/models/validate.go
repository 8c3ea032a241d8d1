package models

import (
	"fmt"
	"strings"

	"github.com/khrees2412/applyflow/internal/apperr"
)

// Validate checks the invariants the tailor depends on
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: profile is required", apperr.ErrInvalidInput)
	}
	if len(p.Projects) == 0 {
		return fmt.Errorf("%w: profile has no projects", apperr.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(p.Projects))
	for i, project := range p.Projects {
		id := strings.TrimSpace(project.ID)
		if id == "" {
			return fmt.Errorf("%w: project #%d has no id", apperr.ErrInvalidInput, i+1)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate project id %q", apperr.ErrInvalidInput, id)
		}
		seen[id] = true
		if len(project.Description) == 0 {
			return fmt.Errorf("%w: project %q has no description bullets", apperr.ErrInvalidInput, id)
		}
	}
	return nil
}

// Validate checks the fields every pipeline stage relies on
func (j *Job) Validate() error {
	if j == nil {
		return fmt.Errorf("%w: job is required", apperr.ErrInvalidInput)
	}
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("%w: job has no id", apperr.ErrInvalidInput)
	}
	if j.Status != "" && !j.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidInput, j.Status)
	}
	return nil
}

// Validate checks the referential invariants of a tailored resume against its profile
func (r *TailoredResume) Validate(profile *Profile) error {
	if r == nil {
		return fmt.Errorf("%w: tailored resume is nil", apperr.ErrSchemaViolation)
	}
	if len(r.SelectedProjectIDs) > 3 {
		return fmt.Errorf("%w: %d projects selected, at most 3 allowed", apperr.ErrSchemaViolation, len(r.SelectedProjectIDs))
	}

	selected := make(map[string]bool, len(r.SelectedProjectIDs))
	for _, id := range r.SelectedProjectIDs {
		if profile.FindProject(id) == nil {
			return fmt.Errorf("%w: selected project %q does not exist", apperr.ErrSchemaViolation, id)
		}
		selected[id] = true
	}
	for id := range r.RewrittenProjectDescriptions {
		if !selected[id] {
			return fmt.Errorf("%w: rewritten bullets for unselected project %q", apperr.ErrSchemaViolation, id)
		}
	}
	return nil
}
