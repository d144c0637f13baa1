// internal/workers/care/search-facilities/config.go
package searchfacilities

import "time"

type Config struct {
	Index           string
	Timeout         time.Duration
	DefaultSize     int
	MaxSize         int
	DefaultRadiusKm float64
}

func LoadConfig() *Config {
	return &Config{
		Index:           "facilities",
		Timeout:         10 * time.Second,
		DefaultSize:     20,
		MaxSize:         100,
		DefaultRadiusKm: 25,
	}
}
