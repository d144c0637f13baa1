// internal/workers/claims/record-claim-decision/handler.go
package recordclaimdecision

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"
	"carehub/internal/domain/coverage"
	"carehub/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "record-claim-decision"
)

type Handler struct {
	config *Config
	store  *store.Store
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		store:  store.New(db),
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
	if input.ClaimID == "" {
		return nil, errors.NewInvalidInputError("claimId is required")
	}
	if !coverage.IsDecisionStatus(input.Decision.Status) {
		return nil, errors.NewClaimDecisionFailedError(fmt.Sprintf("unknown decision status %q", input.Decision.Status))
	}

	err := h.store.Claims.UpdateDecision(ctx, input.ClaimID, input.Decision)
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return nil, errors.NewResourceNotFoundError("insurance_claims", "claim "+input.ClaimID)
	case stderrors.Is(err, store.ErrInvalidTransition):
		return nil, errors.NewBusinessRuleError("Claim is not awaiting a decision", err.Error()).
			WithMetadata("claimId", input.ClaimID)
	case err != nil:
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewQueryTimeoutError("update_claim_decision")
		}
		return nil, errors.NewQueryExecutionFailedError("update_claim_decision", err)
	}

	// The decision is already stored; a missing audit row is not worth a retry.
	if err := h.store.Audit.Record(ctx, "claim_decided", "insurance_claim", input.ClaimID, map[string]interface{}{
		"status":        input.Decision.Status,
		"reason":        input.Decision.Reason,
		"planPaysCents": input.Decision.PlanPaysCents,
		"careGroupId":   input.CareGroupID,
	}); err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":   err,
			"claimId": input.ClaimID,
		})
	}

	h.logger.Info("claim decision recorded", map[string]interface{}{
		"claimId": input.ClaimID,
		"status":  input.Decision.Status,
	})

	return &Output{
		ClaimID:     input.ClaimID,
		ClaimStatus: input.Decision.Status,
		RecordedAt:  time.Now().UTC().Format(time.RFC3339),
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
