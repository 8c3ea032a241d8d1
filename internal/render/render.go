// Package render writes tailored resumes to files the automation backend can upload.
package render

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/khrees2412/applyflow/pkg/models"
)

//go:embed resume.md.tmpl
var resumeTemplate string

var tmpl = template.Must(template.New("resume").Funcs(template.FuncMap{
	"join":    strings.Join,
	"contact": contactLine,
}).Parse(resumeTemplate))

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

type project struct {
	Title     string
	TechStack []string
	Bullets   []string
}

type view struct {
	Profile  *models.Profile
	Job      *models.Job
	Resume   *models.TailoredResume
	Projects []project
}

// Markdown renders resumes as markdown files in a directory.
type Markdown struct {
	dir string
}

// NewMarkdown creates a renderer writing into dir, creating it if needed.
func NewMarkdown(dir string) (*Markdown, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create resume directory: %w", err)
	}
	return &Markdown{dir: dir}, nil
}

// Render writes resume_<job>_tailored.md and returns its path.
func (m *Markdown) Render(profile *models.Profile, job *models.Job, resume *models.TailoredResume) (string, error) {
	var b strings.Builder
	if err := Write(&b, profile, job, resume); err != nil {
		return "", err
	}

	path := filepath.Join(m.dir, FileName(job.ID))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write resume: %w", err)
	}
	return path, nil
}

// Write renders the resume as markdown into w.
// Projects keep the selection order and use the rewritten bullets.
func Write(w io.StringWriter, profile *models.Profile, job *models.Job, resume *models.TailoredResume) error {
	if profile == nil || job == nil || resume == nil {
		return fmt.Errorf("render: profile, job and resume are required")
	}

	v := view{Profile: profile, Job: job, Resume: resume}
	for _, id := range resume.SelectedProjectIDs {
		p := profile.FindProject(id)
		if p == nil {
			continue
		}
		bullets := resume.RewrittenProjectDescriptions[id]
		if len(bullets) == 0 {
			bullets = p.Description
		}
		v.Projects = append(v.Projects, project{Title: p.Title, TechStack: p.TechStack, Bullets: bullets})
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, v); err != nil {
		return fmt.Errorf("render resume: %w", err)
	}
	_, err := w.WriteString(b.String())
	return err
}

// FileName is the file a job's tailored resume is written to.
func FileName(jobID string) string {
	name := unsafeName.ReplaceAllString(jobID, "_")
	if name == "" {
		name = "job"
	}
	return "resume_" + name + "_tailored.md"
}

func contactLine(p *models.Profile) string {
	var parts []string
	for _, s := range []string{p.Email, p.Phone, p.Location, p.LinkedIn, p.GitHub} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " | ")
}
