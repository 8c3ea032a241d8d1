package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khrees2412/applyflow/internal/apperr"
)

// Gateway errors. Gateways wrap them so callers can classify failures with errors.Is.
var (
	ErrUnavailable    = errors.New("gateway unavailable")
	ErrTimeout        = errors.New("gateway timeout")
	ErrSchemaMismatch = errors.New("gateway output does not match schema")
)

// Value is the structured result of a generation call.
type Value = map[string]any

// Gateway generates schema-constrained structured output from a prompt.
type Gateway interface {
	Generate(ctx context.Context, prompt string, schema *Schema, timeout time.Duration) (Value, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, prompt string, schema *Schema, timeout time.Duration) (Value, error)

func (f GatewayFunc) Generate(ctx context.Context, prompt string, schema *Schema, timeout time.Duration) (Value, error) {
	return f(ctx, prompt, schema, timeout)
}

// WithTimeout derives a context bounded by timeout. A non-positive timeout leaves ctx as is.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// ClassifyContextErr maps a done context (deadline or caller cancellation) to ErrTimeout
// so it stays distinguishable from other failures. It returns nil while ctx is live.
func ClassifyContextErr(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
}

// ParseObject parses model text into a JSON object, tolerating markdown fences.
func ParseObject(raw string) (Value, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrSchemaMismatch)
	}

	var out Value
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrSchemaMismatch, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: response is not an object", ErrSchemaMismatch)
	}
	return out, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// AsAppError wraps a gateway error with the matching pipeline error kind.
func AsAppError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout):
		return fmt.Errorf("%w: %w", apperr.ErrGatewayTimeout, err)
	case errors.Is(err, ErrSchemaMismatch):
		return fmt.Errorf("%w: %w", apperr.ErrSchemaViolation, err)
	default:
		return fmt.Errorf("%w: %w", apperr.ErrGatewayUnavailable, err)
	}
}
