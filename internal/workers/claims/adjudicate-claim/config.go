// internal/workers/claims/adjudicate-claim/config.go
package adjudicateclaim

import "time"

type Config struct {
	Timeout              time.Duration
	ReviewThresholdCents int64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:              5 * time.Second,
		ReviewThresholdCents: 1_000_000,
	}
}
