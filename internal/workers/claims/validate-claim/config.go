// internal/workers/claims/validate-claim/config.go
package validateclaim

import "time"

type Config struct {
	Timeout time.Duration
	// MaxServiceAge is how far back a service date may be.
	MaxServiceAge time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       10 * time.Second,
		MaxServiceAge: 365 * 24 * time.Hour,
	}
}
