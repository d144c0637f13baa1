// internal/workers/claims/adjudicate-claim/handler.go
package adjudicateclaim

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"
	"carehub/internal/domain/coverage"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "adjudicate-claim"
)

type Handler struct {
	config *Config
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
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

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input.Eligibility == nil {
		return nil, errors.NewClaimDecisionFailedError("eligibility is missing").
			WithMetadata("claimId", input.ClaimID)
	}
	serviceDate, err := time.Parse("2006-01-02", input.ServiceDate)
	if err != nil {
		return nil, errors.NewClaimDecisionFailedError(fmt.Sprintf("serviceDate: %v", err))
	}

	claim := coverage.Claim{
		ID:          input.ClaimID,
		MemberID:    input.MemberID,
		ServiceCode: input.ServiceCode,
		ServiceDate: serviceDate,
		BilledCents: input.BilledAmountCents,
	}
	decision := coverage.Decide(claim, input.Eligibility, h.config.ReviewThresholdCents)

	h.logger.Info("claim adjudicated", map[string]interface{}{
		"claimId":       input.ClaimID,
		"status":        decision.Status,
		"reason":        decision.Reason,
		"allowedCents":  decision.AllowedCents,
		"planPaysCents": decision.PlanPaysCents,
	})

	return &Output{
		Decision:       decision,
		ClaimStatus:    decision.Status,
		RequiresReview: decision.Status == coverage.ClaimPendingReview,
	}, nil
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
