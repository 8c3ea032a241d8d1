package applicator

import (
	"strings"

	"github.com/khrees2412/applyflow/pkg/models"
)

// supportedSources have dedicated form locators.
var supportedSources = []string{"linkedin", "greenhouse", "lever"}

// Field is one form input to fill.
type Field struct {
	Name    string
	Locator string
	Value   string
}

// FormPlan is the ordered list of fills followed by the resume upload.
type FormPlan struct {
	Source        string // "generic" when the source has no dedicated locators
	Fields        []Field
	ResumeLocator string
}

type locators struct {
	fields map[string]string
	resume string
}

var sourceLocators = map[string]locators{
	"linkedin": {
		fields: map[string]string{
			"first_name": `input[id*="firstName"]`,
			"last_name":  `input[id*="lastName"]`,
			"email":      `input[id*="emailAddress"]`,
			"phone":      `input[id*="phoneNumber"]`,
			"location":   `input[id*="location"]`,
		},
		resume: `input[type="file"][name="file"]`,
	},
	"greenhouse": {
		fields: map[string]string{
			"first_name":   `#first_name`,
			"last_name":    `#last_name`,
			"email":        `#email`,
			"phone":        `#phone`,
			"location":     `#job_application_location`,
			"linkedin_url": `input[autocomplete="custom-question-linkedin-profile"]`,
		},
		resume: `#resume`,
	},
	"lever": {
		fields: map[string]string{
			"full_name":    `input[name="name"]`,
			"email":        `input[name="email"]`,
			"phone":        `input[name="phone"]`,
			"location":     `input[name="location"]`,
			"linkedin_url": `input[name="urls[LinkedIn]"]`,
			"github_url":   `input[name="urls[GitHub]"]`,
		},
		resume: `input[name="resume"]`,
	},
}

var genericLocators = locators{
	fields: map[string]string{
		"first_name":   `input[name="first_name"]`,
		"last_name":    `input[name="last_name"]`,
		"email":        `input[type="email"]`,
		"phone":        `input[type="tel"]`,
		"location":     `input[name="location"]`,
		"linkedin_url": `input[name="linkedin"]`,
		"github_url":   `input[name="github"]`,
	},
	resume: `input[type="file"]`,
}

// fieldOrder is the order fields are filled in.
var fieldOrder = []string{
	"full_name", "first_name", "last_name", "email", "phone",
	"location", "linkedin_url", "github_url",
}

// CanAutoApply checks if a job's source has dedicated form locators
func CanAutoApply(job *models.Job) bool {
	return sourceOf(job) != ""
}

// PlanFor builds the form plan for job from the profile's contact details.
// Fields the profile has no value for are left out.
func PlanFor(job *models.Job, profile *models.Profile) FormPlan {
	source := sourceOf(job)
	locs, ok := sourceLocators[source]
	if !ok {
		source = "generic"
		locs = genericLocators
	}

	values := ApplicationFormFields(profile)
	plan := FormPlan{Source: source, ResumeLocator: locs.resume}
	for _, name := range fieldOrder {
		locator, ok := locs.fields[name]
		if !ok || values[name] == "" {
			continue
		}
		plan.Fields = append(plan.Fields, Field{Name: name, Locator: locator, Value: values[name]})
	}
	return plan
}

// ApplicationFormFields returns the common form field values for a profile
func ApplicationFormFields(profile *models.Profile) map[string]string {
	first, last := splitName(profile.Name)
	return map[string]string{
		"full_name":    strings.TrimSpace(profile.Name),
		"first_name":   first,
		"last_name":    last,
		"email":        strings.TrimSpace(profile.Email),
		"phone":        strings.TrimSpace(profile.Phone),
		"location":     strings.TrimSpace(profile.Location),
		"linkedin_url": strings.TrimSpace(profile.LinkedIn),
		"github_url":   strings.TrimSpace(profile.GitHub),
	}
}

func sourceOf(job *models.Job) string {
	source := strings.ToLower(strings.TrimSpace(job.Source))
	url := strings.ToLower(job.URL)
	for _, s := range supportedSources {
		if source == s || strings.Contains(url, s+".") {
			return s
		}
	}
	return ""
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
