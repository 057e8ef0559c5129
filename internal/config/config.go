package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Auth         AuthConfig         `yaml:"auth"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	Transport    TransportConfig    `yaml:"transport"`
	Import       ImportConfig       `yaml:"import"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	AutoApproval AutoApprovalConfig `yaml:"auto_approval"`
	Logging      LoggingConfig      `yaml:"logging"`
	Workers      WorkersConfig      `yaml:"workers"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int      `yaml:"port"`
	Host        string   `yaml:"host"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for the listener.
func (c ServerConfig) Addr() string {
	return c.GetHost() + ":" + strconv.Itoa(c.Port)
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the Redis connection used by the rate limiter and locks
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds JWT signing settings
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	Issuer        string `yaml:"issuer"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// TokenTTL returns the token lifetime as a duration
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// WebhookConfig holds the shared key for machine-triggered endpoints
type WebhookConfig struct {
	Key         string `yaml:"key"`
	HistorySize int    `yaml:"history_size"`
}

// DispatchConfig holds queue processing settings
type DispatchConfig struct {
	StaleAfterSeconds      int    `yaml:"stale_after_seconds"`
	DrainIterations        int    `yaml:"drain_iterations"`
	DrainPauseSeconds      int    `yaml:"drain_pause_seconds"`
	InteractiveBatchSize   int    `yaml:"interactive_batch_size"`
	BackgroundBatchSize    int    `yaml:"background_batch_size"`
	PollIntervalSeconds    int    `yaml:"poll_interval_seconds"`
	ReclaimIntervalSeconds int    `yaml:"reclaim_interval_seconds"`
	FromName               string `yaml:"from_name"`
	FromEmail              string `yaml:"from_email"`
}

// StaleAfter returns the processing lease length
func (c DispatchConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSeconds) * time.Second
}

// DrainPause returns the pause between drain passes
func (c DispatchConfig) DrainPause() time.Duration {
	return time.Duration(c.DrainPauseSeconds) * time.Second
}

// PollInterval returns the background poller interval
func (c DispatchConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// ReclaimInterval returns how often stale items are swept
func (c DispatchConfig) ReclaimInterval() time.Duration {
	return time.Duration(c.ReclaimIntervalSeconds) * time.Second
}

// TransportConfig selects and configures the outbound mail transport
type TransportConfig struct {
	Type      string          `yaml:"type"` // ses | http
	SES       SESConfig       `yaml:"ses"`
	HTTP      HTTPMailConfig  `yaml:"http"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// SESConfig holds AWS SES settings
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// HTTPMailConfig holds settings for the JSON mail API transport
type HTTPMailConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c HTTPMailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RateLimitConfig caps sends per window. Zero disables a window.
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	PerSecond      int  `yaml:"per_second"`
	PerMinute      int  `yaml:"per_minute"`
	PerDay         int  `yaml:"per_day"`
	MaxWaitSeconds int  `yaml:"max_wait_seconds"`
}

// MaxWait returns how long a send may block on the limiter
func (c RateLimitConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitSeconds) * time.Second
}

// ImportConfig holds contact import settings
type ImportConfig struct {
	LookupBatchSize int    `yaml:"lookup_batch_size"`
	InsertBatchSize int    `yaml:"insert_batch_size"`
	CountryCode     string `yaml:"country_code"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Region        string `yaml:"s3_region"`
	S3Profile       string `yaml:"s3_profile"`
}

// AMQPConfig holds the optional enqueue event bus
type AMQPConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// Enabled reports whether an AMQP URL was configured
func (c AMQPConfig) Enabled() bool {
	return c.URL != ""
}

// AutoApprovalConfig holds the scheduled approver settings
type AutoApprovalConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Schedule       string `yaml:"schedule"`
	ApproverID     string `yaml:"approver_id"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the distributed lock lifetime
func (c AutoApprovalConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. Defaults to true.
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// WorkersConfig controls where background workers run
type WorkersConfig struct {
	InProcess bool `yaml:"in_process"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "campaign-dispatch"
	}
	if cfg.Auth.TokenTTLHours == 0 {
		cfg.Auth.TokenTTLHours = 24
	}
	if cfg.Webhook.HistorySize <= 0 {
		cfg.Webhook.HistorySize = 100
	}

	d := &cfg.Dispatch
	if d.StaleAfterSeconds == 0 {
		d.StaleAfterSeconds = 300
	}
	if d.DrainIterations == 0 {
		d.DrainIterations = 10
	}
	if d.DrainPauseSeconds == 0 {
		d.DrainPauseSeconds = 2
	}
	if d.InteractiveBatchSize == 0 {
		d.InteractiveBatchSize = 10
	}
	if d.BackgroundBatchSize == 0 {
		d.BackgroundBatchSize = 50
	}
	d.InteractiveBatchSize = clamp(d.InteractiveBatchSize, 10, 50)
	d.BackgroundBatchSize = clamp(d.BackgroundBatchSize, 10, 50)
	if d.PollIntervalSeconds == 0 {
		d.PollIntervalSeconds = 60
	}
	if d.ReclaimIntervalSeconds == 0 {
		d.ReclaimIntervalSeconds = 60
	}
	if d.FromName == "" {
		d.FromName = "Campaign Dispatch"
	}

	t := &cfg.Transport
	if t.Type == "" {
		t.Type = "ses"
	}
	t.Type = strings.ToLower(t.Type)
	if t.SES.Region == "" {
		t.SES.Region = "us-west-2"
	}
	if t.HTTP.MaxRetries == 0 {
		t.HTTP.MaxRetries = 3
	}
	if t.HTTP.TimeoutSeconds == 0 {
		t.HTTP.TimeoutSeconds = 30
	}
	if t.RateLimit.MaxWaitSeconds == 0 {
		t.RateLimit.MaxWaitSeconds = 5
	}

	im := &cfg.Import
	if im.LookupBatchSize <= 0 {
		im.LookupBatchSize = 100
	}
	if im.InsertBatchSize == 0 {
		im.InsertBatchSize = 50
	}
	im.InsertBatchSize = clamp(im.InsertBatchSize, 50, 100)
	if im.CountryCode == "" {
		im.CountryCode = "81"
	}
	if im.S3Region == "" {
		im.S3Region = "us-west-2"
	}

	if cfg.AMQP.Queue == "" {
		cfg.AMQP.Queue = "dispatch.drain"
	}

	if cfg.AutoApproval.Schedule == "" {
		cfg.AutoApproval.Schedule = "*/5 * * * *"
	}
	if cfg.AutoApproval.LockTTLSeconds == 0 {
		cfg.AutoApproval.LockTTLSeconds = 120
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("WEBHOOK_KEY"); v != "" {
		cfg.Webhook.Key = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Transport.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Transport.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Transport.SES.Region = v
	}
	if v := os.Getenv("MAIL_API_KEY"); v != "" {
		cfg.Transport.HTTP.APIKey = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQP.URL = v
	}
	if v := os.Getenv("IMPORT_S3_BUCKET"); v != "" {
		cfg.Import.S3Bucket = v
	}

	return cfg, nil
}
