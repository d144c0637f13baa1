// internal/workers/marketplace/create-order/config.go
package createorder

import "time"

type Config struct {
	Currency string
	CartTTL  time.Duration
	Timeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Currency: "usd",
		CartTTL:  30 * 24 * time.Hour,
		Timeout:  15 * time.Second,
	}
}
