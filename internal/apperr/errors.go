package apperr

import "errors"

// Sentinel errors for the pipeline. Callers match them with errors.Is.
var (
	ErrGatewayUnavailable     = errors.New("generation gateway unavailable")
	ErrGatewayTimeout         = errors.New("generation gateway timed out")
	ErrSchemaViolation        = errors.New("generated output violates schema")
	ErrAutomationStageFailure = errors.New("automation stage failed")
	ErrRateLimited            = errors.New("rate limited")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrAwaitingReview         = errors.New("application is awaiting human review")

	ErrNotFound     = errors.New("not found")
	ErrDuplicateURL = errors.New("a job with this URL already exists")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrGatewayUnavailable, "GatewayUnavailable"},
	{ErrGatewayTimeout, "GatewayTimeout"},
	{ErrSchemaViolation, "SchemaViolation"},
	{ErrAutomationStageFailure, "AutomationStageFailure"},
	{ErrRateLimited, "RateLimited"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrInvalidTransition, "InvalidTransition"},
	{ErrAwaitingReview, "AwaitingReview"},
	{ErrNotFound, "NotFound"},
	{ErrDuplicateURL, "DuplicateURL"},
}

// Kind returns the name of the first error kind err wraps, or "Unknown".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}
