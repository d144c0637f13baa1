// internal/workers/ai/generate-text/handler_test.go
package generatetext

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	GenerateFunc func(ctx context.Context, req Request) (*Output, error)
	last         Request
}

func (m *mockGenerator) Generate(ctx context.Context, req Request) (*Output, error) {
	m.last = req
	return m.GenerateFunc(ctx, req)
}

func createTestConfig() *Config {
	cfg := LoadConfig()
	cfg.OpenAIKey = "sk-test"
	cfg.Timeout = 2 * time.Second
	return cfg
}

func createTestInput() *Input {
	return &Input{
		Prompt:      "Draft a reminder for Mom's Tuesday physio appointment",
		Context:     "Mom uses a walker",
		CareGroupID: "group-001",
	}
}

func TestHandler_Execute_OpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "Mom uses a walker")
		assert.Equal(t, 100, req.MaxTokens)

		w.Write([]byte(`{"model":"gpt-4o-mini-2024","choices":[{"message":{"role":"assistant","content":"  Reminder: physio Tuesday.  "}}],
			"usage":{"prompt_tokens":40,"completion_tokens":6,"total_tokens":46}}`))
	}))
	defer srv.Close()

	cfg := createTestConfig()
	cfg.OpenAIBaseURL = srv.URL
	h, err := NewHandler(cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	input := createTestInput()
	input.MaxTokens = 100
	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "Reminder: physio Tuesday.", out.Text)
	assert.Equal(t, "gpt-4o-mini-2024", out.Model)
	assert.Equal(t, ProviderOpenAI, out.Provider)
	assert.Equal(t, 46, out.TotalTokens)
}

func TestHandler_Execute_Gemini(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello from Gemini"}]}}],
			"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":4,"totalTokenCount":16}}`))
	}))
	defer srv.Close()

	cfg := createTestConfig()
	cfg.Provider = ProviderGemini
	cfg.GeminiKey = "g-test"
	cfg.GeminiBaseURL = srv.URL
	h, err := NewHandler(cfg, logger.NewTestLogger(t))
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, "Hello from Gemini", out.Text)
	assert.Equal(t, ProviderGemini, out.Provider)
	assert.Equal(t, 16, out.TotalTokens)
}

func TestHandler_Execute_Validation(t *testing.T) {
	gen := &mockGenerator{}
	cfg := createTestConfig()
	cfg.MaxPromptChars = 20
	h := NewHandlerWithGenerator(cfg, gen, logger.NewTestLogger(t))

	tests := []struct {
		name  string
		input *Input
	}{
		{"empty prompt", &Input{Prompt: "   "}},
		{"too long", &Input{Prompt: strings.Repeat("a", 15), Context: strings.Repeat("b", 6)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeInvalidInput, stdErr.Code)
		})
	}
}

func TestHandler_Execute_ProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		gen      func(ctx context.Context, req Request) (*Output, error)
		wantCode errors.ErrorCode
	}{
		{
			name:     "deadline",
			gen:      func(context.Context, Request) (*Output, error) { return nil, context.DeadlineExceeded },
			wantCode: errors.ErrCodeAITimeout,
		},
		{
			name:     "api failure",
			gen:      func(context.Context, Request) (*Output, error) { return nil, assert.AnError },
			wantCode: errors.ErrCodeAIGenerationFailed,
		},
		{
			name: "empty completion",
			gen: func(context.Context, Request) (*Output, error) {
				return &Output{Text: "  ", Provider: ProviderOpenAI}, nil
			},
			wantCode: errors.ErrCodeAIGenerationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlerWithGenerator(createTestConfig(), &mockGenerator{GenerateFunc: tt.gen}, logger.NewTestLogger(t))
			_, err := h.Execute(context.Background(), createTestInput())

			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
		})
	}
}

func TestHandler_Execute_PassesSystemPrompt(t *testing.T) {
	gen := &mockGenerator{GenerateFunc: func(context.Context, Request) (*Output, error) {
		return &Output{Text: "ok", Provider: ProviderOpenAI}, nil
	}}
	h := NewHandlerWithGenerator(createTestConfig(), gen, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{Prompt: "hi", MaxTokens: 10000})
	require.NoError(t, err)
	assert.Equal(t, systemPrompt, gen.last.System)
	assert.Equal(t, "hi", gen.last.Prompt)
	assert.Equal(t, 512, gen.last.MaxTokens)
}

func TestNewHandler_UnknownProvider(t *testing.T) {
	cfg := createTestConfig()
	cfg.Provider = "claude"
	_, err := NewHandler(cfg, logger.NewNoOpLogger())
	assert.Error(t, err)
}
