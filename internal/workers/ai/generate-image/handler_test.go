// internal/workers/ai/generate-image/handler_test.go
package generateimage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig(baseURL string) *Config {
	cfg := LoadConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = "sk-test"
	cfg.Timeout = 2 * time.Second
	return cfg
}

func createTestInput() *Input {
	return &Input{Prompt: "A calm illustration of a garden walk", N: 3}
}

func TestHandler_Execute_GeneratesImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req imageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "dall-e-3", req.Model)
		assert.Equal(t, 1, req.N)
		assert.Equal(t, "1024x1024", req.Size)
		assert.Equal(t, "url", req.ResponseFormat)

		w.Write([]byte(`{"data":[{"url":"https://img.example/1.png","revised_prompt":"A calm garden"}]}`))
	}))
	defer srv.Close()

	h := NewHandler(createTestConfig(srv.URL), logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://img.example/1.png"}, out.URLs)
	assert.Equal(t, "A calm garden", out.RevisedPrompt)
	assert.Equal(t, "1024x1024", out.Size)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		status   int
		body     string
		wantCode errors.ErrorCode
	}{
		{"empty prompt", &Input{}, http.StatusOK, `{}`, errors.ErrCodeInvalidInput},
		{"bad size", &Input{Prompt: "x", Size: "10x10"}, http.StatusOK, `{}`, errors.ErrCodeInvalidInput},
		{"no urls", &Input{Prompt: "x"}, http.StatusOK, `{"data":[]}`, errors.ErrCodeAIGenerationFailed},
		{"upstream error", &Input{Prompt: "x"}, http.StatusBadRequest, `{"error":{}}`, errors.ErrCodeAIGenerationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			h := NewHandler(createTestConfig(srv.URL), logger.NewTestLogger(t))
			_, err := h.Execute(context.Background(), tt.input)

			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
		})
	}
}

func TestHandler_Execute_NoRetryOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := NewHandler(createTestConfig(srv.URL), logger.NewTestLogger(t))
	_, err := h.Execute(context.Background(), createTestInput())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
