// Package bootstrap turns the application config into worker configs and
// connects the backing services, shared by the worker manager and the API
// server.
package bootstrap

import (
	"time"

	"carehub/internal/common/config"
	gi "carehub/internal/workers/ai/generate-image"
	gt "carehub/internal/workers/ai/generate-text"
	ga "carehub/internal/workers/care/geocode-address"
	mc "carehub/internal/workers/care/match-caregivers"
	sf "carehub/internal/workers/care/search-facilities"
	ac "carehub/internal/workers/claims/adjudicate-claim"
	cc "carehub/internal/workers/claims/check-coverage"
	rcd "carehub/internal/workers/claims/record-claim-decision"
	vc "carehub/internal/workers/claims/validate-claim"
	sn "carehub/internal/workers/communication/send-notification"
	co "carehub/internal/workers/marketplace/create-order"
	cpi "carehub/internal/workers/marketplace/create-payment-intent"
	rws "carehub/internal/workers/wellness/record-wellness-score"
)

// workerTimeout returns the configured timeout for taskType, or fallback
// when the worker has no timeout of its own.
func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if w, ok := cfg.Workers[taskType]; ok && w.Timeout > 0 {
		return config.GetDuration(w.Timeout)
	}
	return fallback
}

func millis(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return config.GetDuration(ms)
}

func ValidateClaimConfig(cfg *config.Config) *vc.Config {
	c := vc.LoadConfig()
	c.Timeout = workerTimeout(cfg, vc.TaskType, c.Timeout)
	return c
}

func CheckCoverageConfig(cfg *config.Config) *cc.Config {
	c := cc.LoadConfig()
	c.Timeout = workerTimeout(cfg, cc.TaskType, c.Timeout)
	c.MockEligibility = cfg.Claims.MockEligibility
	return c
}

func AdjudicateClaimConfig(cfg *config.Config) *ac.Config {
	c := ac.LoadConfig()
	c.Timeout = workerTimeout(cfg, ac.TaskType, c.Timeout)
	if cfg.Claims.ReviewThresholdCents > 0 {
		c.ReviewThresholdCents = cfg.Claims.ReviewThresholdCents
	}
	return c
}

func RecordClaimDecisionConfig(cfg *config.Config) *rcd.Config {
	c := rcd.LoadConfig()
	c.Timeout = workerTimeout(cfg, rcd.TaskType, c.Timeout)
	return c
}

func MatchCaregiversConfig(cfg *config.Config) *mc.Config {
	c := mc.LoadConfig()
	c.Timeout = workerTimeout(cfg, mc.TaskType, c.Timeout)
	return c
}

func GeocodeConfig(cfg *config.Config) *ga.Config {
	c := ga.LoadConfig()
	if cfg.APIs.Geocoding.BaseURL != "" {
		c.BaseURL = cfg.APIs.Geocoding.BaseURL
	}
	if cfg.APIs.Geocoding.UserAgent != "" {
		c.UserAgent = cfg.APIs.Geocoding.UserAgent
	}
	c.Timeout = millis(cfg.APIs.Geocoding.Timeout, c.Timeout)
	return c
}

func SearchFacilitiesConfig(cfg *config.Config) *sf.Config {
	c := sf.LoadConfig()
	if idx := cfg.Database.Elasticsearch.FacilitiesIndex; idx != "" {
		c.Index = idx
	}
	c.Timeout = workerTimeout(cfg, sf.TaskType, c.Timeout)
	return c
}

func CreateOrderConfig(cfg *config.Config) *co.Config {
	c := co.LoadConfig()
	if cfg.APIs.Stripe.Currency != "" {
		c.Currency = cfg.APIs.Stripe.Currency
	}
	c.Timeout = workerTimeout(cfg, co.TaskType, c.Timeout)
	return c
}

func PaymentIntentConfig(cfg *config.Config) *cpi.Config {
	c := cpi.LoadConfig()
	if cfg.APIs.Stripe.BaseURL != "" {
		c.BaseURL = cfg.APIs.Stripe.BaseURL
	}
	c.SecretKey = cfg.APIs.Stripe.SecretKey
	if cfg.APIs.Stripe.Currency != "" {
		c.Currency = cfg.APIs.Stripe.Currency
	}
	c.Timeout = millis(cfg.APIs.Stripe.Timeout, c.Timeout)
	return c
}

func SendNotificationConfig(cfg *config.Config) *sn.Config {
	c := sn.LoadConfig()
	n := cfg.Notifications
	aws := cfg.Integrations.AWS

	c.EmailEnabled = n.Email.Enabled && aws.SES.Enabled
	c.SMSEnabled = n.SMS.Enabled && aws.SNS.Enabled
	c.FromEmail = n.Email.FromEmail
	if c.FromEmail == "" {
		c.FromEmail = aws.SES.FromEmail
	}
	c.SMSSenderID = aws.SNS.DefaultSMSSenderID
	if n.SMS.PriorityThreshold != "" {
		c.SMSPriority = n.SMS.PriorityThreshold
	}
	c.Timeout = workerTimeout(cfg, sn.TaskType, c.Timeout)
	return c
}

func GenerateTextConfig(cfg *config.Config) *gt.Config {
	c := gt.LoadConfig()
	if cfg.APIs.TextProvider != "" {
		c.Provider = cfg.APIs.TextProvider
	}
	if cfg.APIs.OpenAI.BaseURL != "" {
		c.OpenAIBaseURL = cfg.APIs.OpenAI.BaseURL
	}
	c.OpenAIKey = cfg.APIs.OpenAI.APIKey
	if cfg.APIs.OpenAI.Model != "" {
		c.OpenAIModel = cfg.APIs.OpenAI.Model
	}
	c.GeminiKey = cfg.APIs.Gemini.APIKey
	if cfg.APIs.Gemini.Model != "" {
		c.GeminiModel = cfg.APIs.Gemini.Model
	}

	timeout := cfg.APIs.OpenAI.Timeout
	if c.Provider == gt.ProviderGemini {
		timeout = cfg.APIs.Gemini.Timeout
	}
	c.Timeout = millis(timeout, c.Timeout)
	return c
}

func GenerateImageConfig(cfg *config.Config) *gi.Config {
	c := gi.LoadConfig()
	if cfg.APIs.OpenAI.BaseURL != "" {
		c.BaseURL = cfg.APIs.OpenAI.BaseURL
	}
	c.APIKey = cfg.APIs.OpenAI.APIKey
	if cfg.APIs.OpenAI.ImageModel != "" {
		c.Model = cfg.APIs.OpenAI.ImageModel
	}
	c.Timeout = millis(cfg.APIs.OpenAI.Timeout, c.Timeout)
	return c
}

func WellnessConfig(cfg *config.Config) *rws.Config {
	c := rws.LoadConfig()
	c.Timeout = workerTimeout(cfg, rws.TaskType, c.Timeout)
	return c
}
