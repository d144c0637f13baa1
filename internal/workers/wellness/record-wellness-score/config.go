// internal/workers/wellness/record-wellness-score/config.go
package recordwellnessscore

import "time"

type Config struct {
	TrendWindow int
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		TrendWindow: 7,
		Timeout:     10 * time.Second,
	}
}
