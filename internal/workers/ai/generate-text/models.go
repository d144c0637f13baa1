// internal/workers/ai/generate-text/models.go
package generatetext

type Input struct {
	Prompt      string `json:"prompt"`
	Context     string `json:"context,omitempty"`
	CareGroupID string `json:"careGroupId,omitempty"`
	MaxTokens   int    `json:"maxTokens,omitempty"`
}

type Output struct {
	Text             string `json:"text"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
	TotalTokens      int    `json:"totalTokens"`
}

// Request is the provider-neutral generation call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
