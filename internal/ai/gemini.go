package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/khrees2412/applyflow/internal/logger"
)

const defaultGeminiModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGateway generates structured output with the Gemini API.
type GeminiGateway struct {
	models    contentGenerator
	modelName string
	logger    *zap.Logger
	maxLogLen int
}

// NewGeminiGateway creates a gateway backed by the Gemini API.
func NewGeminiGateway(ctx context.Context, apiKey, model string, log *zap.Logger) (*GeminiGateway, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGeminiGateway(client.Models, model, log), nil
}

func newGeminiGateway(models contentGenerator, model string, log *zap.Logger) *GeminiGateway {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGateway{
		models:    models,
		modelName: model,
		logger:    logger.OrNop(log),
		maxLogLen: 200,
	}
}

// Generate sends the prompt with a JSON response schema and parses the reply.
func (g *GeminiGateway) Generate(ctx context.Context, prompt string, schema *Schema, timeout time.Duration) (Value, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("prompt must not be empty")
	}

	ctx, cancel := WithTimeout(ctx, timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema.genaiSchema(),
	}

	g.logger.Debug("gemini generate request",
		zap.String("model", g.modelName),
		zap.String("schema", schemaName(schema)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, g.maxLogLen)),
	)

	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), cfg)
	if err != nil {
		if ctxErr := ClassifyContextErr(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyGeminiErr(err)
	}

	raw := responseText(resp)
	g.logger.Debug("gemini generate response",
		zap.String("schema", schemaName(schema)),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, g.maxLogLen)),
	)

	value, err := ParseObject(raw)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(value); err != nil {
		return nil, err
	}
	return value, nil
}

// Model returns the configured model name.
func (g *GeminiGateway) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

func classifyGeminiErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusRequestTimeout || apiErr.Code == http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		case apiErr.Code == http.StatusBadRequest:
			return fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func schemaName(s *Schema) string {
	if s == nil {
		return ""
	}
	return s.Name
}
