// Package ingest loads job postings from feeds, normalizes them and stores them for the pipeline.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/khrees2412/applyflow/pkg/models"
)

// Source yields one finite batch of jobs per Fetch.
type Source interface {
	Fetch(ctx context.Context) ([]models.Job, error)
}

// FileSource reads jobs from a JSON or YAML file. The file holds either a list
// of jobs or an object with a "jobs" list.
type FileSource struct {
	Path string
}

type feed struct {
	Jobs []models.Job `json:"jobs" yaml:"jobs"`
}

func (s FileSource) Fetch(ctx context.Context) ([]models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read job feed: %w", err)
	}

	jobs, err := decodeFeed(data, strings.ToLower(filepath.Ext(s.Path)) == ".json")
	if err != nil {
		return nil, fmt.Errorf("parse job feed %s: %w", filepath.Base(s.Path), err)
	}
	return jobs, nil
}

func decodeFeed(data []byte, isJSON bool) ([]models.Job, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	unmarshal := yaml.Unmarshal
	if isJSON {
		unmarshal = json.Unmarshal
	}

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "-") {
		var jobs []models.Job
		if err := unmarshal(data, &jobs); err != nil {
			return nil, err
		}
		return jobs, nil
	}

	var f feed
	if err := unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Jobs, nil
}

// StaticSource returns a fixed batch, for jobs added by hand.
type StaticSource []models.Job

func (s StaticSource) Fetch(ctx context.Context) ([]models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]models.Job(nil), s...), nil
}
