// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	APIs          APIsConfig              `mapstructure:"apis"`
	HTTP          HTTPConfig              `mapstructure:"http"`
	Claims        ClaimsConfig            `mapstructure:"claims"`
	AppShell      AppShellConfig          `mapstructure:"app_shell"`
	Tracing       TracingConfig           `mapstructure:"tracing"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Registry      RegistryConfig          `mapstructure:"registry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds

	// BPMN resources deployed by the worker manager on startup.
	DeployResources []string `mapstructure:"deploy_resources"`
	ClaimProcessID  string   `mapstructure:"claim_process_id"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses       []string `mapstructure:"addresses"`
	Username        string   `mapstructure:"username"`
	Password        string   `mapstructure:"password"`
	SSLEnabled      bool     `mapstructure:"ssl_enabled"`
	URL             string   `mapstructure:"url"`
	FacilitiesIndex string   `mapstructure:"facilities_index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Specific Configuration Sections ---

// AuthConfig holds the settings for verifying backend-issued access tokens.
type AuthConfig struct {
	JWT struct {
		Secret string `mapstructure:"secret"`
		Issuer string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
}

// IntegrationConfig holds settings for email and SMS delivery.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// APIsConfig holds settings for the third-party APIs proxied by the functions.
type APIsConfig struct {
	OpenAI struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		Model      string `mapstructure:"model"`
		ImageModel string `mapstructure:"image_model"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"openai"`

	Gemini struct {
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"gemini"`

	// TextProvider selects the generate-text backend: "openai" or "gemini".
	TextProvider string `mapstructure:"text_provider"`

	Stripe struct {
		BaseURL   string `mapstructure:"base_url"`
		SecretKey string `mapstructure:"secret_key"`
		Currency  string `mapstructure:"currency"`
		Timeout   int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"stripe"`

	Geocoding struct {
		BaseURL   string `mapstructure:"base_url"`
		UserAgent string `mapstructure:"user_agent"`
		Timeout   int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"geocoding"`
}

// HTTPConfig holds settings for the API server.
type HTTPConfig struct {
	Port       int `mapstructure:"port"`
	HealthPort int `mapstructure:"health_port"`
	RateLimit  struct {
		Requests int `mapstructure:"requests"`
		Window   int `mapstructure:"window"` // seconds
	} `mapstructure:"rate_limit"`
	// Redis used by the gateway limiter. Falls back to database.redis.
	LimiterRedis RedisConfig `mapstructure:"limiter_redis"`
}

// ClaimsConfig holds adjudication settings.
type ClaimsConfig struct {
	ReviewThresholdCents int64 `mapstructure:"review_threshold_cents"`
	MockEligibility      bool  `mapstructure:"mock_eligibility"`
}

// AppShellConfig points at the mobile shell configuration file.
type AppShellConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// TracingConfig configures span export. Empty endpoint disables the exporter.
type TracingConfig struct {
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// NotificationConfig holds settings for the send-notification worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled           bool   `mapstructure:"enabled"`
		PriorityThreshold string `mapstructure:"priority_threshold"`
	} `mapstructure:"sms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RegistryConfig locates the activity registry.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
