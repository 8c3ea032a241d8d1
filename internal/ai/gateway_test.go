package ai

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var testSchema = &Schema{
	Name: "match_assessment",
	Type: TypeObject,
	Properties: map[string]*Schema{
		"score":     {Type: TypeInteger},
		"reasoning": {Type: TypeString},
	},
	Required: []string{"score", "reasoning"},
}

type fakeModels struct {
	resp       *genai.GenerateContentResponse
	err        error
	lastConfig *genai.GenerateContentConfig
	lastModel  string
	block      bool
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.lastModel = model
	f.lastConfig = config
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestParseObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "plain", raw: `{"score": 80, "reasoning": "ok"}`},
		{name: "fenced", raw: "```json\n{\"score\": 80}\n```"},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "not json", raw: "the candidate is great", wantErr: true},
		{name: "array", raw: `[1, 2]`, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseObject(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrSchemaMismatch)
				return
			}
			require.NoError(t, err)
			assert.EqualValues(t, 80, v["score"])
		})
	}
}

func TestSchemaValidateAndJSONSchema(t *testing.T) {
	assert.NoError(t, testSchema.Validate(Value{"score": 1, "reasoning": "x"}))
	assert.ErrorIs(t, testSchema.Validate(Value{"score": 1}), ErrSchemaMismatch)
	assert.ErrorIs(t, testSchema.Validate(Value{"score": 1, "reasoning": nil}), ErrSchemaMismatch)

	doc := testSchema.JSONSchema()
	assert.Equal(t, "object", doc["type"])
	props := doc["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "integer"}, props["score"])
	assert.Equal(t, []string{"score", "reasoning"}, doc["required"])
}

func TestGeminiGatewayGenerate(t *testing.T) {
	fake := &fakeModels{resp: textResponse(`{"score": 91, "reasoning": "Strong overlap"}`)}
	gw := newGeminiGateway(fake, "", zap.NewNop())

	v, err := gw.Generate(context.Background(), "score this", testSchema, time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 91, v["score"])
	assert.Equal(t, defaultGeminiModel, fake.lastModel)
	require.NotNil(t, fake.lastConfig)
	assert.Equal(t, "application/json", fake.lastConfig.ResponseMIMEType)
	assert.Equal(t, genai.TypeObject, fake.lastConfig.ResponseSchema.Type)
	assert.Equal(t, genai.TypeInteger, fake.lastConfig.ResponseSchema.Properties["score"].Type)
}

func TestGeminiGatewayErrors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeModels
		want error
	}{
		{name: "server error", fake: &fakeModels{err: genai.APIError{Code: http.StatusInternalServerError}}, want: ErrUnavailable},
		{name: "network", fake: &fakeModels{err: errors.New("connection refused")}, want: ErrUnavailable},
		{name: "bad request", fake: &fakeModels{err: genai.APIError{Code: http.StatusBadRequest}}, want: ErrSchemaMismatch},
		{name: "missing field", fake: &fakeModels{resp: textResponse(`{"score": 3}`)}, want: ErrSchemaMismatch},
		{name: "empty", fake: &fakeModels{resp: &genai.GenerateContentResponse{}}, want: ErrSchemaMismatch},
		{name: "deadline", fake: &fakeModels{block: true}, want: ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newGeminiGateway(tt.fake, "gemini-test", nil)
			_, err := gw.Generate(context.Background(), "prompt", testSchema, 20*time.Millisecond)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOllamaGatewayGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"response": `{"score": 55, "reasoning": "partial"}`})
	}))
	defer srv.Close()

	gw := NewOllamaGateway(srv.URL+"/", "", nil, nil)
	v, err := gw.Generate(context.Background(), "prompt", testSchema, time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 55, v["score"])
	assert.Equal(t, defaultOllamaModel, got["model"])
	assert.Equal(t, false, got["stream"])
	format, ok := got["format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", format["type"])
}

func TestOllamaGatewayFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllamaGateway(srv.URL, "m", nil, nil).Generate(context.Background(), "p", testSchema, time.Second)
	assert.ErrorIs(t, err, ErrUnavailable)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer slow.Close()

	_, err = NewOllamaGateway(slow.URL, "m", nil, nil).Generate(context.Background(), "p", testSchema, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestOpenAIGatewayGenerate(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{
				"message": map[string]any{"role": "assistant", "content": "```json\n{\"score\": 61, \"reasoning\": \"solid\"}\n```"},
			}},
		})
	}))
	defer srv.Close()

	gw, err := NewOpenAIGateway(srv.URL+"/v1/", "sk-test", "", nil, nil)
	require.NoError(t, err)
	v, err := gw.Generate(context.Background(), "prompt", testSchema, time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 61, v["score"])
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, defaultOpenAIModel, got["model"])

	format, ok := got["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
	jsonSchema, ok := format["json_schema"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "match_assessment", jsonSchema["name"])

	_, err = NewOpenAIGateway("", " ", "", nil, nil)
	assert.ErrorContains(t, err, "api key")
}

func TestLMStudioGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"score": 40}`}}},
		})
	}))
	defer srv.Close()

	_, err := NewLMStudioGateway(srv.URL, "qwen", nil, nil).Generate(context.Background(), "p", testSchema, time.Second)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer empty.Close()

	_, err = NewLMStudioGateway(empty.URL, "", nil, nil).Generate(context.Background(), "p", testSchema, time.Second)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no model loaded", http.StatusBadRequest)
	}))
	defer down.Close()

	_, err = NewLMStudioGateway(down.URL, "", nil, nil).Generate(context.Background(), "p", testSchema, time.Second)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, 80.0, CoerceNumber("80%"))
	assert.Equal(t, 12.5, CoerceNumber(12.5))
	assert.Equal(t, 7.0, CoerceNumber(json.Number("7")))
	assert.True(t, math.IsNaN(CoerceNumber("high")))
	assert.True(t, math.IsNaN(CoerceNumber(nil)))

	assert.Equal(t, "hi", CoerceString("  hi "))
	assert.Equal(t, "", CoerceString(nil))
	assert.Equal(t, "[1,2]", CoerceString([]int{1, 2}))

	assert.Equal(t, []string{"a", "b"}, CoerceStrings([]any{" a ", "", "b"}))
	assert.Equal(t, []string{"solo"}, CoerceStrings("solo"))
	assert.Nil(t, CoerceStrings(42))
}
