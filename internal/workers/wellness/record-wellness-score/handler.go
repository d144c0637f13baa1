// internal/workers/wellness/record-wellness-score/handler.go
package recordwellnessscore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"
	"carehub/internal/domain/wellness"
	"carehub/internal/realtime"
	"carehub/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "record-wellness-score"

// EventPublisher is satisfied by *realtime.Hub.
type EventPublisher interface {
	Publish(ctx context.Context, e realtime.Event) error
}

type Handler struct {
	config *Config
	store  *store.Store
	events EventPublisher
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, events EventPublisher, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		store:  store.New(db),
		events: events,
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
	if input.UserID == "" {
		return nil, errors.NewInvalidInputError("userId is required")
	}
	if input.Metrics == nil {
		return nil, errors.NewInvalidInputError("metrics are required")
	}
	if err := wellness.Validate(*input.Metrics); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	score := wellness.Score(input.Metrics)

	entry, err := h.store.Wellness.Insert(ctx, store.WellnessLog{
		UserID:  input.UserID,
		GroupID: input.CareGroupID,
		Metrics: *input.Metrics,
		Score:   score,
		Notes:   input.Notes,
	})
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	// The trend is informational; a read failure does not undo the log.
	scores, err := h.store.Wellness.RecentScores(ctx, input.UserID, h.config.TrendWindow)
	if err != nil {
		h.logger.Warn("failed to load recent scores", map[string]interface{}{
			"userId": input.UserID,
			"error":  err,
		})
		scores = []int{score}
	}
	trend := wellness.Trend(scores)

	if input.CareGroupID != "" && h.events != nil {
		h.publish(ctx, input, entry.ID, score, trend)
	}

	h.logger.Info("wellness score recorded", map[string]interface{}{
		"userId": input.UserID,
		"score":  score,
		"trend":  trend,
	})

	return &Output{LogID: entry.ID, Score: score, Trend: trend, RecentScores: scores}, nil
}

func (h *Handler) publish(ctx context.Context, input *Input, logID string, score int, trend string) {
	event, err := realtime.NewEvent(realtime.EventWellnessLogged, input.CareGroupID, input.UserID, map[string]interface{}{
		"wellnessLogId": logID,
		"score":         score,
		"trend":         trend,
	})
	if err == nil {
		err = h.events.Publish(ctx, event)
	}
	if err != nil {
		h.logger.Warn("failed to publish wellness event", map[string]interface{}{
			"careGroupId": input.CareGroupID,
			"error":       err,
		})
	}
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
