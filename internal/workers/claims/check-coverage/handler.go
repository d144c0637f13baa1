// internal/workers/claims/check-coverage/handler.go
package checkcoverage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"
	"carehub/internal/common/metrics"
	"carehub/internal/domain/coverage"
	"carehub/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType  = "check-coverage"
	cacheName = "coverage"
)

// PlanSource looks up a member's plan. store.Plans satisfies it.
type PlanSource interface {
	GetForMember(ctx context.Context, memberID string) (*coverage.Eligibility, error)
}

type Handler struct {
	config *Config
	plans  PlanSource
	redis  *redis.Client
	errors *errors.ErrorHandler
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, plans PlanSource, redis *redis.Client, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		plans:  plans,
		redis:  redis,
		errors: errors.NewErrorHandler(log),
		logger: log,
		now:    time.Now,
	}
}

func CacheKey(memberID string) string {
	return "coverage:" + memberID
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
	if input.MemberID == "" {
		return nil, errors.NewInvalidInputError("memberId is required")
	}

	asOf := h.now()
	if input.ServiceDate != "" {
		d, err := time.Parse("2006-01-02", input.ServiceDate)
		if err != nil {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("serviceDate: %v", err))
		}
		asOf = d
	}

	elig, source, err := h.lookup(ctx, input.MemberID, asOf)
	if err != nil {
		return nil, err
	}

	output := &Output{
		Eligibility: elig,
		IsActive:    elig.IsActiveOn(asOf),
		Source:      source,
	}

	h.logger.Info("coverage checked", map[string]interface{}{
		"claimId":  input.ClaimID,
		"memberId": input.MemberID,
		"planId":   elig.PlanID,
		"isActive": output.IsActive,
		"source":   source,
	})

	return output, nil
}

// lookup resolves eligibility from cache, then Postgres. The mock fallback
// covers the plan year of asOf.
func (h *Handler) lookup(ctx context.Context, memberID string, asOf time.Time) (*coverage.Eligibility, string, error) {
	key := CacheKey(memberID)
	if val, err := h.redis.Get(ctx, key).Bytes(); err == nil {
		var elig coverage.Eligibility
		if err := json.Unmarshal(val, &elig); err == nil {
			metrics.CacheHit(cacheName)
			return &elig, SourceCache, nil
		}
	}
	metrics.CacheMiss(cacheName)

	elig, err := h.plans.GetForMember(ctx, memberID)
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		if !h.config.MockEligibility {
			return nil, "", errors.NewCoverageNotFoundError(memberID).WithMetadata("memberId", memberID)
		}
		return coverage.MockEligibility(memberID, asOf), SourceMock, nil
	case err != nil:
		return nil, "", errors.NewCoverageCheckFailedError(err)
	}

	if data, err := json.Marshal(elig); err == nil {
		if err := h.redis.Set(ctx, key, data, h.config.CacheTTL).Err(); err != nil {
			h.logger.Warn("failed to cache coverage", map[string]interface{}{
				"memberId": memberID,
				"error":    err,
			})
		}
	}
	return elig, SourceDatabase, nil
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
