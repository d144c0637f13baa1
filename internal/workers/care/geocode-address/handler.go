// internal/workers/care/geocode-address/handler.go
package geocodeaddress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"carehub/internal/common/errors"
	httpclient "carehub/internal/common/http"
	"carehub/internal/common/logger"
	"carehub/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const TaskType = "geocode-address"

type Handler struct {
	config *Config
	client *httpclient.Client
	redis  *redis.Client
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, redis *redis.Client, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		client: httpclient.NewClient(config.Timeout, httpclient.WithRetries(config.Retries, config.RetryBackoff)),
		redis:  redis,
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
	address := strings.TrimSpace(input.Address)
	if address == "" {
		return nil, errors.NewInvalidInputError("address is required")
	}

	key := CacheKey(address, input.CountryCode)
	if out, ok := h.fromCache(ctx, key); ok {
		metrics.CacheHit(TaskType)
		return out, nil
	}
	metrics.CacheMiss(TaskType)

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	if input.CountryCode != "" {
		q.Set("countrycodes", strings.ToLower(input.CountryCode))
	}

	var places []nominatimPlace
	err := h.client.DoJSON(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     strings.TrimRight(h.config.BaseURL, "/") + "/search?" + q.Encode(),
		Headers: map[string]string{"User-Agent": h.config.UserAgent},
	}, &places)
	if err != nil {
		if httpclient.IsTimeout(err) {
			return nil, errors.NewGeocodingTimeoutError()
		}
		return nil, errors.NewExternalServiceError("nominatim", err)
	}
	if len(places) == 0 {
		return nil, errors.NewGeocodingFailedError(fmt.Sprintf("no match for %q", address))
	}

	out, err := toOutput(places[0])
	if err != nil {
		return nil, errors.NewGeocodingFailedError(err.Error())
	}

	if data, err := json.Marshal(out); err == nil {
		if err := h.redis.Set(ctx, key, data, h.config.CacheTTL).Err(); err != nil {
			h.logger.Warn("failed to cache geocode result", map[string]interface{}{"error": err})
		}
	}

	h.logger.Info("address geocoded", map[string]interface{}{
		"latitude":  out.Latitude,
		"longitude": out.Longitude,
	})
	return out, nil
}

// CacheKey normalises the address so trivially different spellings share
// an entry.
func CacheKey(address, countryCode string) string {
	key := "geocode:" + strings.ToLower(strings.Join(strings.Fields(address), " "))
	if countryCode != "" {
		key += "|" + strings.ToLower(countryCode)
	}
	return key
}

func (h *Handler) fromCache(ctx context.Context, key string) (*Output, bool) {
	val, err := h.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var out Output
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, false
	}
	out.Cached = true
	return &out, true
}

func toOutput(p nominatimPlace) (*Output, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("bad latitude %q", p.Lat)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("bad longitude %q", p.Lon)
	}
	return &Output{Latitude: lat, Longitude: lon, DisplayName: p.DisplayName}, nil
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
