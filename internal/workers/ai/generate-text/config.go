// internal/workers/ai/generate-text/config.go
package generatetext

import "time"

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Provider string

	OpenAIBaseURL string
	OpenAIKey     string
	OpenAIModel   string

	GeminiBaseURL string
	GeminiKey     string
	GeminiModel   string

	MaxPromptChars int
	MaxTokens      int
	Temperature    float32
	Timeout        time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Provider:       ProviderOpenAI,
		OpenAIBaseURL:  "https://api.openai.com",
		OpenAIModel:    "gpt-4o-mini",
		GeminiModel:    "gemini-2.0-flash",
		MaxPromptChars: 4000,
		MaxTokens:      512,
		Temperature:    0.7,
		Timeout:        60 * time.Second,
	}
}
