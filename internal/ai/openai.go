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
	defaultOpenAIURL     = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultLMStudioURL   = "http://localhost:1234/v1"
	defaultLMStudioModel = "local-model"
)

// OpenAIGateway generates structured output through an OpenAI-compatible
// chat completions API. LM Studio serves the same API locally without a key.
type OpenAIGateway struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewOpenAIGateway creates a gateway for api.openai.com, or baseURL when set.
func NewOpenAIGateway(baseURL, apiKey, model string, client *http.Client, log *zap.Logger) (*OpenAIGateway, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key not configured. Run: applyflow config set --key gateway.openai_api_key --value YOUR_KEY")
	}
	return newOpenAICompatible("openai", baseURL, defaultOpenAIURL, apiKey, model, defaultOpenAIModel, client, log), nil
}

// NewLMStudioGateway creates a gateway for a local LM Studio server.
func NewLMStudioGateway(baseURL, model string, client *http.Client, log *zap.Logger) *OpenAIGateway {
	return newOpenAICompatible("lmstudio", baseURL, defaultLMStudioURL, "", model, defaultLMStudioModel, client, log)
}

func newOpenAICompatible(name, baseURL, defaultURL, apiKey, model, defaultModel string, client *http.Client, log *zap.Logger) *OpenAIGateway {
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = defaultURL
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAIGateway{
		name:    name,
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		client:  client,
		logger:  logger.OrNop(log),
	}
}

// Generate posts the prompt to /chat/completions with the schema as a json_schema response format.
func (o *OpenAIGateway) Generate(ctx context.Context, prompt string, schema *Schema, timeout time.Duration) (Value, error) {
	ctx, cancel := WithTimeout(ctx, timeout)
	defer cancel()

	reqBody := map[string]interface{}{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.2,
	}
	if schema != nil {
		name := schema.Name
		if name == "" {
			name = "response"
		}
		reqBody["response_format"] = map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   name,
				"schema": schema.JSONSchema(),
			},
		}
	} else {
		reqBody["response_format"] = map[string]string{"type": "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

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
		o.logger.Debug(o.name+" api error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", logger.TruncateForLog(string(body), 200)),
		)
		return nil, fmt.Errorf("%w: %s api status %d", ErrUnavailable, o.name, resp.StatusCode)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %w", ErrSchemaMismatch, err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%w: unexpected response format from %s", ErrSchemaMismatch, o.name)
	}

	value, err := ParseObject(result.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(value); err != nil {
		return nil, err
	}
	return value, nil
}
