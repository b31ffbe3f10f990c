package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Notification  NotificationConfig  `mapstructure:"notification"`
}

type ServerConfig struct {
	Env               string        `mapstructure:"env" env:"APP_ENV,default=development"`
	Port              int           `mapstructure:"port" env:"HTTP_PORT,default=8080"`
	BaseURL           string        `mapstructure:"base_url" env:"HTTP_BASE_URL"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS,default=*"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT,default=5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" env:"HTTP_READ_TIMEOUT,default=15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" env:"HTTP_IDLE_TIMEOUT,default=60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" env:"HTTP_WRITE_TIMEOUT,default=15s"`
	RateLimitRPS      int           `mapstructure:"rate_limit_rps" env:"HTTP_RATE_LIMIT_RPS,default=20"`
	RateLimitBurst    int           `mapstructure:"rate_limit_burst" env:"HTTP_RATE_LIMIT_BURST,default=40"`
	IdempotencyTTL    time.Duration `mapstructure:"idempotency_ttl" env:"HTTP_IDEMPOTENCY_TTL,default=24h"`
	OpenAPIPath       string        `mapstructure:"openapi_path" env:"HTTP_OPENAPI_PATH,default=./api/openapi.yml"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" env:"DB_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME,default=30m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME,default=5m"`
	Source          string        `mapstructure:"source" env:"DB_SOURCE,required"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" env:"REDIS_ENABLED,default=false"`
	Addr     string `mapstructure:"addr" env:"REDIS_ADDR,default=localhost:6379"`
	Password string `mapstructure:"password" env:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"db" env:"REDIS_DB,default=0"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" env:"JWT_ACCESS_SECRET,required"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" env:"JWT_REFRESH_SECRET,required"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" env:"JWT_ACCESS_TTL,default=15m"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" env:"JWT_REFRESH_TTL,default=168h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" env:"BCRYPT_COST,default=12"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" env:"METRICS_ENABLED,default=true"`
	Path    string `mapstructure:"path" env:"METRICS_PATH,default=/metrics"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" env:"LOG_LEVEL,default=info"`
	Format string `mapstructure:"format" env:"LOG_FORMAT,default=json"`
}

// LedgerConfig carries the named policy switches of the authorization gate and the
// integrity sweep schedule.
type LedgerConfig struct {
	DefaultCurrency                string        `mapstructure:"default_currency" env:"LEDGER_DEFAULT_CURRENCY,default=SAR"`
	RequirePositiveBalanceOnSubmit bool          `mapstructure:"require_positive_balance_on_submit" env:"LEDGER_REQUIRE_POSITIVE_BALANCE_ON_SUBMIT,default=true"`
	DistinctDecider                bool          `mapstructure:"distinct_decider" env:"LEDGER_DISTINCT_DECIDER,default=true"`
	RecipientAcceptsTransfer       bool          `mapstructure:"recipient_accepts_transfer" env:"LEDGER_RECIPIENT_ACCEPTS_TRANSFER,default=true"`
	RecipientApprovesTopup         bool          `mapstructure:"recipient_approves_topup" env:"LEDGER_RECIPIENT_APPROVES_TOPUP,default=false"`
	OperationTimeout               time.Duration `mapstructure:"operation_timeout" env:"LEDGER_OPERATION_TIMEOUT,default=10s"`
	IntegritySweepSchedule         string        `mapstructure:"integrity_sweep_schedule" env:"LEDGER_INTEGRITY_SWEEP_SCHEDULE,default=@every 15m"`
	IntegritySweepLockTTL          time.Duration `mapstructure:"integrity_sweep_lock_ttl" env:"LEDGER_INTEGRITY_SWEEP_LOCK_TTL,default=10m"`
}

type StorageConfig struct {
	Driver          string `mapstructure:"driver" env:"STORAGE_DRIVER,default=local"`
	LocalDir        string `mapstructure:"local_dir" env:"STORAGE_LOCAL_DIR,default=./data/attachments"`
	Bucket          string `mapstructure:"bucket" env:"STORAGE_BUCKET"`
	CredentialsFile string `mapstructure:"credentials_file" env:"STORAGE_CREDENTIALS_FILE"`
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes" env:"STORAGE_MAX_UPLOAD_BYTES,default=10485760"`
}

type NotificationConfig struct {
	Workers   int          `mapstructure:"workers" env:"NOTIFICATION_WORKERS,default=4"`
	QueueSize int          `mapstructure:"queue_size" env:"NOTIFICATION_QUEUE_SIZE,default=256"`
	PubSub    PubSubConfig `mapstructure:"pubsub"`
}

type PubSubConfig struct {
	Enabled         bool   `mapstructure:"enabled" env:"PUBSUB_ENABLED,default=false"`
	ProjectID       string `mapstructure:"project_id" env:"PUBSUB_PROJECT_ID"`
	Topic           string `mapstructure:"topic" env:"PUBSUB_TOPIC,default=custody-notifications"`
	CredentialsFile string `mapstructure:"credentials_file" env:"PUBSUB_CREDENTIALS_FILE"`
}

// LoadConfigFromEnv decodes the configuration from environment variables only.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("decode env config: %w", err)
	}
	return &cfg, nil
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Redis.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("redis config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Ledger.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("ledger config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Notification.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("notification config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.AllowedOrigins != "" {
		for _, origin := range c.Origins() {
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limit values cannot be negative")
	}
	return nil
}

func (c *ServerConfig) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *RedisConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		return errors.New("addr is required when redis is enabled")
	}
	return nil
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("access_token_secret must be at least 32 characters")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("refresh_token_secret must be at least 32 characters")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh secrets must differ")
	}
	if c.AccessTokenDuration <= 0 || c.RefreshTokenDuration <= c.AccessTokenDuration {
		return errors.New("refresh_token_duration must be longer than access_token_duration")
	}
	if c.BCryptCost < 10 || c.BCryptCost > 15 {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown level %q", c.Level)
	}
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	return nil
}

func (c *LedgerConfig) Validate() error {
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("default_currency must be an ISO 4217 code, got %q", c.DefaultCurrency)
	}
	if c.IntegritySweepSchedule != "" {
		if _, err := cron.ParseStandard(c.IntegritySweepSchedule); err != nil {
			return fmt.Errorf("invalid integrity_sweep_schedule: %w", err)
		}
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case "local":
		if c.LocalDir == "" {
			return errors.New("local_dir is required for the local driver")
		}
	case "gcs":
		if c.Bucket == "" {
			return errors.New("bucket is required for the gcs driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Driver)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	return nil
}

func (c *NotificationConfig) Validate() error {
	if c.Workers < 0 || c.QueueSize < 0 {
		return errors.New("workers and queue_size cannot be negative")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.Topic == "") {
		return errors.New("pubsub project_id and topic are required when enabled")
	}
	return nil
}
