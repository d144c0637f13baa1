// internal/workers/care/search-facilities/handler.go
package searchfacilities

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"net/http"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const TaskType = "search-facilities"

type Handler struct {
	config *Config
	client *elasticsearch.Client
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		client: client,
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
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, errors.NewInvalidInputError("latitude and longitude must be given together")
	}
	if input.RadiusKm < 0 {
		return nil, errors.NewInvalidInputError("radiusKm must not be negative")
	}

	radius := input.RadiusKm
	if radius == 0 {
		radius = h.config.DefaultRadiusKm
	}
	from, size := h.paginate(input.From, input.Size)

	body, err := json.Marshal(BuildQuery(input, radius))
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	req := esapi.SearchRequest{
		Index: []string{h.config.Index},
		Body:  bytes.NewReader(body),
		From:  &from,
		Size:  &size,
	}
	res, err := req.Do(ctx, h.client)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewSearchTimeoutError(TaskType)
		}
		return nil, errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errors.NewIndexNotFoundError(h.config.Index)
	}
	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(TaskType, fmt.Errorf("%s", res.String()))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, errors.NewSearchQueryFailedError(TaskType, err)
	}

	out := &Output{
		Facilities: make([]Facility, 0, len(sr.Hits.Hits)),
		TotalHits:  sr.Hits.Total.Value,
		Took:       sr.Took,
	}
	for _, hit := range sr.Hits.Hits {
		f := Facility{
			ID:                hit.ID,
			Name:              hit.Source.Name,
			FacilityType:      hit.Source.FacilityType,
			Address:           hit.Source.Address,
			Phone:             hit.Source.Phone,
			AcceptedInsurance: hit.Source.AcceptedInsurance,
			Latitude:          hit.Source.Location.Lat,
			Longitude:         hit.Source.Location.Lon,
			Rating:            hit.Source.Rating,
		}
		if hit.Score != nil {
			f.Score = *hit.Score
		}
		if input.located() && len(hit.Sort) > 0 {
			if d, ok := hit.Sort[0].(float64); ok {
				d = math.Round(d*100) / 100
				f.DistanceKm = &d
			}
		}
		out.Facilities = append(out.Facilities, f)
	}

	h.logger.Info("facility search completed", map[string]interface{}{
		"totalHits": out.TotalHits,
		"returned":  len(out.Facilities),
		"located":   input.located(),
		"took":      out.Took,
	})
	return out, nil
}

// paginate clamps size to 1..MaxSize, defaulting when unset.
func (h *Handler) paginate(from, size int) (int, int) {
	if from < 0 {
		from = 0
	}
	switch {
	case size <= 0:
		size = h.config.DefaultSize
	case size > h.config.MaxSize:
		size = h.config.MaxSize
	}
	return from, size
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
