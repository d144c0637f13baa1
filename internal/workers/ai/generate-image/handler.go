// internal/workers/ai/generate-image/handler.go
package generateimage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"carehub/internal/common/errors"
	httpclient "carehub/internal/common/http"
	"carehub/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "generate-image"

type Handler struct {
	config *Config
	client *httpclient.Client
	errors *errors.ErrorHandler
	logger logger.Logger
}

// NewHandler does not retry: every image call is billed.
func NewHandler(config *Config, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		client: httpclient.NewClient(config.Timeout),
		errors: errors.NewErrorHandler(log),
		logger: log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return nil, errors.NewInvalidInputError("prompt is required")
	}
	if utf8.RuneCountInString(prompt) > h.config.MaxPromptChars {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("prompt exceeds %d characters", h.config.MaxPromptChars))
	}

	size := input.Size
	if size == "" {
		size = h.config.DefaultSize
	}
	if !h.sizeAllowed(size) {
		return nil, errors.NewInvalidInputError(
			fmt.Sprintf("size %q not allowed, use one of %s", size, strings.Join(h.config.AllowedSizes, ", ")))
	}

	n := input.N
	if n <= 0 {
		n = 1
	}
	if n > h.config.MaxImages {
		n = h.config.MaxImages
	}

	var resp imageResponse
	err := h.client.DoJSON(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     strings.TrimRight(h.config.BaseURL, "/") + "/v1/images/generations",
		Headers: map[string]string{"Authorization": "Bearer " + h.config.APIKey},
		Body: imageRequest{
			Model:          h.config.Model,
			Prompt:         prompt,
			N:              n,
			Size:           size,
			ResponseFormat: "url",
		},
	}, &resp)
	if err != nil {
		if httpclient.IsTimeout(err) {
			return nil, errors.NewAITimeoutError()
		}
		return nil, errors.NewAIGenerationFailedError(err)
	}

	out := &Output{URLs: make([]string, 0, len(resp.Data)), Model: h.config.Model, Size: size}
	for _, d := range resp.Data {
		if d.URL == "" {
			continue
		}
		out.URLs = append(out.URLs, d.URL)
		if out.RevisedPrompt == "" {
			out.RevisedPrompt = d.RevisedPrompt
		}
	}
	if len(out.URLs) == 0 {
		return nil, errors.NewAIGenerationFailedError(fmt.Errorf("image response carried no urls"))
	}

	h.logger.Info("image generated", map[string]interface{}{
		"model": out.Model,
		"size":  size,
		"count": len(out.URLs),
	})
	return out, nil
}

func (h *Handler) sizeAllowed(size string) bool {
	for _, s := range h.config.AllowedSizes {
		if s == size {
			return true
		}
	}
	return false
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	if sendErr := h.errors.HandleJobError(context.Background(), client, job, err); sendErr != nil {
		h.logger.Error("failed to report job failure", map[string]interface{}{
			"jobKey": job.Key,
			"error":  sendErr,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
