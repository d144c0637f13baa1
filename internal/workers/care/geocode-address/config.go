// internal/workers/care/geocode-address/config.go
package geocodeaddress

import "time"

type Config struct {
	BaseURL      string
	UserAgent    string
	CacheTTL     time.Duration
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
}

func LoadConfig() *Config {
	return &Config{
		BaseURL:      "https://nominatim.openstreetmap.org",
		UserAgent:    "carehub/1.0",
		CacheTTL:     24 * time.Hour,
		Timeout:      10 * time.Second,
		Retries:      1,
		RetryBackoff: 500 * time.Millisecond,
	}
}
