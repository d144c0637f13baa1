// internal/workers/marketplace/create-payment-intent/config.go
package createpaymentintent

import "time"

type Config struct {
	BaseURL          string
	SecretKey        string
	Currency         string
	Timeout          time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		BaseURL:          "https://api.stripe.com",
		Currency:         "usd",
		Timeout:          20 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}
