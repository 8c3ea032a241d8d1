package ingest

import (
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/google/uuid"

	"github.com/khrees2412/applyflow/pkg/models"
)

var htmlTag = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// Normalize cleans a fetched job in place: trims text, converts an HTML
// description to markdown, canonicalizes the URL, assigns an id and starts
// the job at QUEUED.
func Normalize(job *models.Job) {
	job.ID = strings.TrimSpace(job.ID)
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Title = strings.TrimSpace(job.Title)
	job.Company = strings.TrimSpace(job.Company)
	job.Location = strings.TrimSpace(job.Location)
	job.Type = strings.TrimSpace(job.Type)
	job.URL = CanonicalURL(job.URL)
	job.Source = strings.ToLower(strings.TrimSpace(job.Source))
	job.Description = cleanDescription(job.Description)

	if job.Source == "" {
		job.Source = sourceFromURL(job.URL)
	}
	if job.Status == "" {
		job.Status = models.StatusQueued
	}
}

func cleanDescription(desc string) string {
	desc = strings.TrimSpace(desc)
	if !htmlTag.MatchString(desc) {
		return desc
	}
	md, err := htmltomarkdown.ConvertString(desc)
	if err != nil || strings.TrimSpace(md) == "" {
		return strings.TrimSpace(htmlTag.ReplaceAllString(desc, " "))
	}
	return strings.TrimSpace(md)
}

// CanonicalURL is the form used to detect duplicate postings.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func sourceFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, known := range []string{"linkedin", "greenhouse", "lever", "indeed", "glassdoor"} {
		if strings.Contains(host, known) {
			return known
		}
	}
	return ""
}
