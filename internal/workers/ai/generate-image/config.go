// internal/workers/ai/generate-image/config.go
package generateimage

import "time"

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	DefaultSize    string
	AllowedSizes   []string
	MaxImages      int
	MaxPromptChars int
	Timeout        time.Duration
}

func LoadConfig() *Config {
	return &Config{
		BaseURL:        "https://api.openai.com",
		Model:          "dall-e-3",
		DefaultSize:    "1024x1024",
		AllowedSizes:   []string{"1024x1024", "1792x1024", "1024x1792"},
		MaxImages:      1,
		MaxPromptChars: 1000,
		Timeout:        90 * time.Second,
	}
}
