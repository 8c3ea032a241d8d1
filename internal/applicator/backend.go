package applicator

import (
	"context"
	"errors"
	"fmt"

	"github.com/khrees2412/applyflow/internal/apperr"
)

// Typed backend failures.
var (
	ErrSelectorNotFound = errors.New("selector not found")
	ErrTimeout          = errors.New("automation step timed out")
	ErrNavigation       = errors.New("navigation failed")
)

// Backend drives one browser session. It fills forms and uploads files but has
// no submit operation: final submission is always a human action.
type Backend interface {
	// Open starts a session for site, restoring state saved by a previous Close.
	Open(ctx context.Context, site string, state []byte) error
	Navigate(ctx context.Context, url string) error
	FillField(ctx context.Context, locator, value string) error
	UploadFile(ctx context.Context, locator, path string) error
	// Close ends the session and returns its state for reuse. The bytes are opaque to callers.
	Close(ctx context.Context) ([]byte, error)
}

// SessionStore keeps backend session state per site.
type SessionStore interface {
	// LoadSession returns nil state when none is stored.
	LoadSession(ctx context.Context, site string) ([]byte, error)
	SaveSession(ctx context.Context, site string, state []byte) error
}

// StageError is a failed backend step. It matches both apperr.ErrAutomationStageFailure
// and the underlying backend error.
type StageError struct {
	Op      string
	Locator string
	Err     error
}

func (e *StageError) Error() string {
	if e.Locator != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Locator, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{apperr.ErrAutomationStageFailure, e.Err}
}

// Retryable reports whether a backend error may succeed on a second attempt.
// A missing selector will not appear by retrying.
func Retryable(err error) bool {
	if errors.Is(err, ErrSelectorNotFound) {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNavigation)
}

// classifyWait maps an expired wait to a missing selector while the caller's
// context is still live, and to a timeout otherwise.
func classifyWait(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrSelectorNotFound, err)
	}
	return err
}

// classifyAction types a failure on an element that was already found. Expired
// deadlines are timeouts; anything else means the element could not be used.
func classifyAction(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrSelectorNotFound), errors.Is(err, ErrNavigation):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrSelectorNotFound, err)
	}
}
