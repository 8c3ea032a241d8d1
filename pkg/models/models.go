package models

import "time"

// Profile represents the candidate's resume data
type Profile struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Email      string    `json:"email" yaml:"email"`
	Phone      string    `json:"phone" yaml:"phone"`
	Location   string    `json:"location" yaml:"location"`
	LinkedIn   string    `json:"linkedin" yaml:"linkedin"`
	GitHub     string    `json:"github" yaml:"github"`
	Objective  string    `json:"objective" yaml:"objective"`
	Skills     []string  `json:"skills" yaml:"skills"`
	Experience []string  `json:"experience" yaml:"experience"`
	Education  []string  `json:"education" yaml:"education"`
	Projects   []Project `json:"projects" yaml:"projects"`
}

// Project represents one resume-worthy accomplishment
type Project struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	TechStack   []string `json:"tech_stack" yaml:"tech_stack"`
	Description []string `json:"description" yaml:"description"` // bullet points
}

// FindProject returns the project with the given id, or nil
func (p *Profile) FindProject(id string) *Project {
	for i := range p.Projects {
		if p.Projects[i].ID == id {
			return &p.Projects[i]
		}
	}
	return nil
}

// Job represents a job posting under consideration
type Job struct {
	ID             string            `json:"id" yaml:"id"`
	Title          string            `json:"title" yaml:"title"`
	Company        string            `json:"company" yaml:"company"`
	Location       string            `json:"location" yaml:"location"`
	Type           string            `json:"type" yaml:"type"` // full-time, hybrid, on-site, ...
	Description    string            `json:"description" yaml:"description"`
	URL            string            `json:"url" yaml:"url"`
	Source         string            `json:"source" yaml:"source"` // linkedin, indeed, greenhouse, ...
	PostedDate     string            `json:"posted_date" yaml:"posted_date"`
	MatchScore     *int              `json:"match_score,omitempty" yaml:"match_score,omitempty"` // nil until scored
	MatchReasoning string            `json:"match_reasoning,omitempty" yaml:"match_reasoning,omitempty"`
	Status         ApplicationStatus `json:"status" yaml:"status"`
	UpdatedAt      time.Time         `json:"updated_at" yaml:"-"`
}

// TailoredResume is the generated resume variant for one (profile, job) pair.
// It is never mutated after creation; re-tailoring produces a new value.
type TailoredResume struct {
	ID                           string              `json:"id"`
	JobID                        string              `json:"job_id"`
	ProfileID                    string              `json:"profile_id"`
	RewrittenObjective           string              `json:"rewritten_objective"`
	SelectedProjectIDs           []string            `json:"selected_project_ids"`
	RewrittenProjectDescriptions map[string][]string `json:"rewritten_project_descriptions"`
	ExtractedKeywords            []string            `json:"extracted_keywords"`
	MatchAnalysis                string              `json:"match_analysis"`
	Repairs                      []string            `json:"repairs,omitempty"`
	GeneratedAt                  time.Time           `json:"generated_at"`
}

// Service identifies the pipeline component that produced an activity entry
type Service string

const (
	ServiceMatching  Service = "MATCHING"
	ServiceTailoring Service = "TAILORING"
	ServiceTracking  Service = "TRACKING"
	ServiceIngest    Service = "INGEST"
)

// LogLevel is the severity of an activity entry
type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// ActivityLogEntry is one append-only pipeline event
type ActivityLogEntry struct {
	ID        string    `json:"id"`
	Service   Service   `json:"service"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	JobID     string    `json:"job_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusCounts holds the number of jobs per application status
type StatusCounts map[ApplicationStatus]int

// Total returns the number of jobs across all statuses
func (c StatusCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
