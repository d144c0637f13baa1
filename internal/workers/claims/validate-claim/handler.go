// internal/workers/claims/validate-claim/handler.go
package validateclaim

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"
	"carehub/internal/common/validation"
	"carehub/internal/domain/coverage"
	"carehub/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-claim"
)

// ClaimTransitioner moves a stored claim between statuses. store.Claims
// satisfies it.
type ClaimTransitioner interface {
	Transition(ctx context.Context, id, status string) error
}

type Handler struct {
	config  *Config
	schemas *validation.Registry
	claims  ClaimTransitioner
	errors  *errors.ErrorHandler
	logger  logger.Logger
	now     func() time.Time
}

// NewHandler builds the handler. claims may be nil, in which case valid
// claims are not marked validated.
func NewHandler(config *Config, schemas *validation.Registry, claims ClaimTransitioner, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		schemas: schemas,
		claims:  claims,
		errors:  errors.NewErrorHandler(log),
		logger:  log,
		now:     time.Now,
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

	if !output.IsValid {
		stdErr := errors.NewClaimValidationFailedError(strings.Join(fieldNames(output.Errors), ", ")).
			WithMetadata("validationErrors", output.Errors)
		h.failJob(client, job, stdErr)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.schemas.Validate(validation.SchemaClaim, input)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	if date, perr := time.Parse("2006-01-02", input.ServiceDate); perr == nil {
		today := h.now().UTC().Truncate(24 * time.Hour)
		switch {
		case date.After(today):
			result.Append("serviceDate", "service date is in the future", "OUT_OF_RANGE")
		case today.Sub(date) > h.config.MaxServiceAge:
			result.Append("serviceDate", "service date is older than the filing window", "OUT_OF_RANGE")
		}
	} else if !result.HasErrors("serviceDate") {
		result.Append("serviceDate", "service date is not a valid date", "INVALID_FORMAT")
	}

	output := &Output{
		IsValid: len(result.Errors) == 0,
		Errors:  result.Errors,
	}
	if output.Errors == nil {
		output.Errors = []validation.ValidationError{}
	}

	if output.IsValid && input.ClaimID != "" && h.claims != nil {
		if err := h.markValidated(ctx, input.ClaimID); err != nil {
			return nil, err
		}
	}

	h.logger.Info("claim validated", map[string]interface{}{
		"claimId":    input.ClaimID,
		"memberId":   input.MemberID,
		"isValid":    output.IsValid,
		"errorCount": len(output.Errors),
	})

	return output, nil
}

func (h *Handler) markValidated(ctx context.Context, claimID string) error {
	err := h.claims.Transition(ctx, claimID, coverage.ClaimValidated)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, store.ErrNotFound):
		return errors.NewResourceNotFoundError("insurance_claims", "claim "+claimID)
	case stderrors.Is(err, store.ErrInvalidTransition):
		return errors.NewBusinessRuleError("Claim is not awaiting validation", err.Error()).
			WithMetadata("claimId", claimID)
	case ctx.Err() == context.DeadlineExceeded:
		return errors.NewQueryTimeoutError("mark_claim_validated")
	default:
		return errors.NewQueryExecutionFailedError("mark_claim_validated", err)
	}
}

func fieldNames(errs []validation.ValidationError) []string {
	names := make([]string, 0, len(errs))
	for _, e := range errs {
		names = append(names, e.Field)
	}
	return names
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
