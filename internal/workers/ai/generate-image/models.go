// internal/workers/ai/generate-image/models.go
package generateimage

type Input struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
	N      int    `json:"n,omitempty"`
}

type Output struct {
	URLs          []string `json:"urls"`
	Model         string   `json:"model"`
	Size          string   `json:"size"`
	RevisedPrompt string   `json:"revisedPrompt,omitempty"`
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}
