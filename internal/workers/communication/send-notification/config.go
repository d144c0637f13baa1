// internal/workers/communication/send-notification/config.go
package sendnotification

import "time"

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	SMSSenderID  string
	// SMSPriority is the lowest priority that also goes out by SMS.
	SMSPriority string
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		SMSPriority: PriorityHigh,
		Timeout:     30 * time.Second,
	}
}
