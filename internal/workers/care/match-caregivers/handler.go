// internal/workers/care/match-caregivers/handler.go
package matchcaregivers

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "match-caregivers"

	neutralScore = 50
)

type Handler struct {
	config *Config
	db     *sql.DB
	redis  *redis.Client
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, redis *redis.Client, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		db:     db,
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
	needs := input.Needs
	if needs == nil && input.PatientID != "" {
		var err error
		needs, err = h.getCareNeeds(ctx, input.PatientID)
		if err != nil {
			h.logger.Warn("failed to fetch care needs", map[string]interface{}{
				"patientId": input.PatientID,
				"error":     err,
			})
		}
	}

	caregivers, err := h.loadCaregivers(ctx)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("caregivers", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = h.config.DefaultLimit
	}

	matches := make([]Match, 0, len(caregivers))
	for _, cg := range caregivers {
		matches = append(matches, h.score(cg, needs))
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].CaregiverID < matches[j].CaregiverID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	h.logger.Info("caregivers matched", map[string]interface{}{
		"careGroupId": input.CareGroupID,
		"patientId":   input.PatientID,
		"candidates":  len(caregivers),
		"returned":    len(matches),
		"hasNeeds":    needs != nil,
	})

	return &Output{Matches: matches, TotalCandidates: len(caregivers)}, nil
}

// score weights skills 35%, availability 20%, and location, language and
// rate 15% each. Without needs every factor is neutral.
func (h *Handler) score(cg Caregiver, needs *CareNeeds) Match {
	m := Match{CaregiverID: cg.ID, Name: cg.Name}
	if needs == nil {
		m.Factors = MatchFactors{neutralScore, neutralScore, neutralScore, neutralScore, neutralScore}
		m.Score = neutralScore
		return m
	}

	var location int
	location, m.DistanceKm = h.calculateLocationFit(needs, cg)

	m.Factors = MatchFactors{
		SkillsFit:       overlapFit(needs.Skills, cg.Skills),
		AvailabilityFit: overlapFit(needs.Days, cg.AvailableDays),
		LocationFit:     location,
		LanguageFit:     calculateLanguageFit(needs.Languages, cg.Languages),
		RateFit:         calculateRateFit(needs.MaxHourlyRateCents, cg.HourlyRateCents),
	}
	m.Score = int(math.Round(
		float64(m.Factors.SkillsFit)*0.35 +
			float64(m.Factors.AvailabilityFit)*0.20 +
			float64(m.Factors.LocationFit)*0.15 +
			float64(m.Factors.LanguageFit)*0.15 +
			float64(m.Factors.RateFit)*0.15))
	return m
}

// overlapFit is the share of wanted values the caregiver offers.
func overlapFit(wanted, offered []string) int {
	if len(wanted) == 0 {
		return neutralScore
	}
	have := make(map[string]struct{}, len(offered))
	for _, o := range offered {
		have[strings.ToLower(o)] = struct{}{}
	}
	hits := 0
	for _, w := range wanted {
		if _, ok := have[strings.ToLower(w)]; ok {
			hits++
		}
	}
	return hits * 100 / len(wanted)
}

func (h *Handler) calculateLocationFit(needs *CareNeeds, cg Caregiver) (int, *float64) {
	if needs.Latitude == nil || needs.Longitude == nil || cg.Latitude == nil || cg.Longitude == nil {
		return neutralScore, nil
	}
	radius := needs.MaxDistanceKm
	if radius <= 0 {
		radius = h.config.DefaultRadiusKm
	}

	d := haversineKm(*needs.Latitude, *needs.Longitude, *cg.Latitude, *cg.Longitude)
	d = math.Round(d*10) / 10

	switch {
	case d <= radius/2:
		return 100, &d
	case d <= radius:
		return 70, &d
	case d <= radius*2:
		return 40, &d
	}
	return 10, &d
}

func calculateLanguageFit(wanted, spoken []string) int {
	if len(wanted) == 0 {
		return neutralScore
	}
	for _, w := range wanted {
		for _, s := range spoken {
			if strings.EqualFold(w, s) {
				return 100
			}
		}
	}
	return 20
}

func calculateRateFit(maxCents, rateCents int64) int {
	if maxCents <= 0 || rateCents <= 0 {
		return neutralScore
	}
	switch {
	case rateCents <= maxCents:
		return 100
	case float64(rateCents) <= float64(maxCents)*1.2:
		return 60
	}
	return 20
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func (h *Handler) getCareNeeds(ctx context.Context, patientID string) (*CareNeeds, error) {
	cacheKey := "care_needs:" + patientID
	if val, err := h.redis.Get(ctx, cacheKey).Result(); err == nil {
		var needs CareNeeds
		if err := json.Unmarshal([]byte(val), &needs); err == nil {
			return &needs, nil
		}
	}

	var (
		needs    CareNeeds
		lat, lon sql.NullFloat64
	)
	err := h.db.QueryRowContext(ctx, `
		SELECT skills, days, latitude, longitude, COALESCE(max_distance_km, 0),
		       languages, COALESCE(max_hourly_rate_cents, 0)
		FROM care_needs WHERE patient_id = $1`, patientID).
		Scan(pq.Array(&needs.Skills), pq.Array(&needs.Days), &lat, &lon, &needs.MaxDistanceKm,
			pq.Array(&needs.Languages), &needs.MaxHourlyRateCents)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lat.Valid && lon.Valid {
		needs.Latitude, needs.Longitude = &lat.Float64, &lon.Float64
	}

	data, _ := json.Marshal(needs)
	h.redis.Set(ctx, cacheKey, data, h.config.CacheTTL)

	return &needs, nil
}

func (h *Handler) loadCaregivers(ctx context.Context) ([]Caregiver, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, display_name, skills, available_days, latitude, longitude, languages, hourly_rate_cents
		FROM caregivers
		WHERE active
		ORDER BY rating DESC NULLS LAST
		LIMIT $1`, h.config.CandidatePool)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Caregiver
	for rows.Next() {
		var (
			cg       Caregiver
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&cg.ID, &cg.Name, pq.Array(&cg.Skills), pq.Array(&cg.AvailableDays),
			&lat, &lon, pq.Array(&cg.Languages), &cg.HourlyRateCents); err != nil {
			return nil, err
		}
		if lat.Valid && lon.Valid {
			la, lo := lat.Float64, lon.Float64
			cg.Latitude, cg.Longitude = &la, &lo
		}
		out = append(out, cg)
	}
	return out, rows.Err()
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
