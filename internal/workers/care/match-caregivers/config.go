// internal/workers/care/match-caregivers/config.go
package matchcaregivers

import "time"

type Config struct {
	CacheTTL        time.Duration
	Timeout         time.Duration
	DefaultLimit    int
	CandidatePool   int
	DefaultRadiusKm float64
}

func LoadConfig() *Config {
	return &Config{
		CacheTTL:        10 * time.Minute,
		Timeout:         15 * time.Second,
		DefaultLimit:    10,
		CandidatePool:   200,
		DefaultRadiusKm: 25,
	}
}
