// internal/workers/ai/generate-text/provider.go
package generatetext

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	httpclient "carehub/internal/common/http"

	"google.golang.org/genai"
)

// Generator is one text-generation backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Output, error)
}

type openAIGenerator struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	model   string
}

func newOpenAIGenerator(cfg *Config) *openAIGenerator {
	return &openAIGenerator{
		client:  httpclient.NewClient(cfg.Timeout, httpclient.WithRetries(1, 500*time.Millisecond)),
		baseURL: strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		apiKey:  cfg.OpenAIKey,
		model:   cfg.OpenAIModel,
	}
}

func (g *openAIGenerator) Generate(ctx context.Context, req Request) (*Output, error) {
	var resp chatResponse
	err := g.client.DoJSON(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     g.baseURL + "/v1/chat/completions",
		Headers: map[string]string{"Authorization": "Bearer " + g.apiKey},
		Body: chatRequest{
			Model: g.model,
			Messages: []chatMessage{
				{Role: "system", Content: req.System},
				{Role: "user", Content: req.Prompt},
			},
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	model := resp.Model
	if model == "" {
		model = g.model
	}
	return &Output{
		Text:             resp.Choices[0].Message.Content,
		Model:            model,
		Provider:         ProviderOpenAI,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

func newGeminiGenerator(ctx context.Context, cfg *Config) (*geminiGenerator, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.GeminiBaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.GeminiBaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &geminiGenerator{client: client, model: cfg.GeminiModel}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, req Request) (*Output, error) {
	temp := req.Temperature
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
			MaxOutputTokens:   int32(req.MaxTokens),
			Temperature:       &temp,
		})
	if err != nil {
		return nil, err
	}

	out := &Output{Text: resp.Text(), Model: g.model, Provider: ProviderGemini}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.CompletionTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}
