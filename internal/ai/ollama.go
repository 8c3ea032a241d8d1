package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khrees2412/applyflow/internal/logger"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

// OllamaGateway generates structured output with a local Ollama server.
type OllamaGateway struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewOllamaGateway creates a gateway for the Ollama server at baseURL.
func NewOllamaGateway(baseURL, model string, client *http.Client, log *zap.Logger) *OllamaGateway {
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultOllamaModel
	}
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaGateway{
		baseURL: baseURL,
		model:   model,
		client:  client,
		logger:  logger.OrNop(log),
	}
}

// Generate posts the prompt to /api/generate with the schema as the output format.
func (o *OllamaGateway) Generate(ctx context.Context, prompt string, schema *Schema, timeout time.Duration) (Value, error) {
	ctx, cancel := WithTimeout(ctx, timeout)
	defer cancel()

	reqBody := map[string]interface{}{
		"model":  o.model,
		"prompt": prompt,
		"stream": false,
	}
	if schema != nil {
		reqBody["format"] = schema.JSONSchema()
	} else {
		reqBody["format"] = "json"
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if ctxErr := ClassifyContextErr(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		o.logger.Debug("ollama api error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", logger.TruncateForLog(string(body), 200)),
		)
		return nil, fmt.Errorf("%w: ollama api status %d", ErrUnavailable, resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %w", ErrSchemaMismatch, err)
	}

	response, ok := result["response"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected response format from Ollama", ErrSchemaMismatch)
	}

	value, err := ParseObject(response)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(value); err != nil {
		return nil, err
	}
	return value, nil
}
