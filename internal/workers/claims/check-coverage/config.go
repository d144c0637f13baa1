// internal/workers/claims/check-coverage/config.go
package checkcoverage

import "time"

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
	// MockEligibility falls back to the fixed demo plan when a member has
	// no plan on file.
	MockEligibility bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  10 * time.Second,
		CacheTTL: 5 * time.Minute,
	}
}
