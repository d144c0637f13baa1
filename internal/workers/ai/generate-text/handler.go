// internal/workers/ai/generate-text/handler.go
package generatetext

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"carehub/internal/common/errors"
	httpclient "carehub/internal/common/http"
	"carehub/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "generate-text"

const systemPrompt = "You are a care coordination assistant for family caregivers. " +
	"Give practical, kind and concise answers. You are not a clinician: never diagnose, " +
	"and direct anything urgent to a medical professional or emergency services."

type Handler struct {
	config    *Config
	generator Generator
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, log logger.Logger) (*Handler, error) {
	var gen Generator
	switch config.Provider {
	case ProviderGemini:
		g, err := newGeminiGenerator(context.Background(), config)
		if err != nil {
			return nil, err
		}
		gen = g
	case ProviderOpenAI, "":
		gen = newOpenAIGenerator(config)
	default:
		return nil, fmt.Errorf("unknown text provider %q", config.Provider)
	}
	return NewHandlerWithGenerator(config, gen, log), nil
}

func NewHandlerWithGenerator(config *Config, gen Generator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		generator: gen,
		errors:    errors.NewErrorHandler(log),
		logger:    log,
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
	if n := utf8.RuneCountInString(prompt) + utf8.RuneCountInString(input.Context); n > h.config.MaxPromptChars {
		return nil, errors.NewInvalidInputError(
			fmt.Sprintf("prompt is %d characters, limit is %d", n, h.config.MaxPromptChars))
	}

	maxTokens := h.config.MaxTokens
	if input.MaxTokens > 0 && input.MaxTokens < maxTokens {
		maxTokens = input.MaxTokens
	}

	out, err := h.generator.Generate(ctx, Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(prompt, input.Context),
		MaxTokens:   maxTokens,
		Temperature: h.config.Temperature,
	})
	if err != nil {
		if httpclient.IsTimeout(err) || ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewAITimeoutError()
		}
		return nil, errors.NewAIGenerationFailedError(err)
	}
	out.Text = strings.TrimSpace(out.Text)
	if out.Text == "" {
		return nil, errors.NewAIGenerationFailedError(fmt.Errorf("%s returned an empty completion", out.Provider))
	}

	h.logger.Info("text generated", map[string]interface{}{
		"provider":    out.Provider,
		"model":       out.Model,
		"totalTokens": out.TotalTokens,
		"careGroupId": input.CareGroupID,
	})
	return out, nil
}

func buildPrompt(prompt, groupContext string) string {
	if strings.TrimSpace(groupContext) == "" {
		return prompt
	}
	return "Context about this care group:\n" + strings.TrimSpace(groupContext) + "\n\nRequest:\n" + prompt
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
