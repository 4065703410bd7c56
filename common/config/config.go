// Package config provides centralized configuration for the Clearline engine
// and its tools. Values come from /etc/clearline/config.yaml (overridable via
// CLEARLINE_CONFIG_DIR) with environment variables taking precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the master configuration struct.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Sinks     SinksConfig     `mapstructure:"sinks"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// EngineConfig holds pipeline settings.
type EngineConfig struct {
	// Workers bounds the per-batch entity-group worker pool.
	// Zero means one worker per CPU.
	Workers int `mapstructure:"workers"`

	// SchemaDir is the directory of declarative schema/rule documents
	// loaded at startup and on reload.
	SchemaDir string `mapstructure:"schema_dir"`

	// ResultSecret signs batch result summaries. Empty disables signing.
	ResultSecret string `mapstructure:"result_secret"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	// TokenSecret validates HS256 bearer tokens. Empty disables auth.
	TokenSecret string `mapstructure:"token_secret"`
}

// RateLimitConfig bounds batch submissions per source.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// DatabaseConfig holds batch-audit persistence settings.
type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString renders the pgx/migrate connection string.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// NATSConfig holds message broker configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Enabled       bool          `mapstructure:"enabled"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// RedisConfig holds the batch idempotency guard configuration.
type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	Enabled bool          `mapstructure:"enabled"`
	// TTL bounds how long a processed batch id is remembered.
	TTL time.Duration `mapstructure:"ttl"`
}

// SinksConfig holds optional output sink configuration. The engine always
// publishes its streams; sinks additionally materialize them for analytics.
type SinksConfig struct {
	Parquet    ParquetSinkConfig    `mapstructure:"parquet"`
	OpenSearch OpenSearchSinkConfig `mapstructure:"opensearch"`
}

// ParquetSinkConfig writes clean records to object storage as Parquet.
type ParquetSinkConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	EndpointURL     string `mapstructure:"endpoint_url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
	BasePrefix      string `mapstructure:"base_prefix"`
}

// OpenSearchSinkConfig indexes quarantine diagnostics for triage.
type OpenSearchSinkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	IndexPrefix   string `mapstructure:"index_prefix"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from $CLEARLINE_CONFIG_DIR/config.yaml and the
// environment. A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configDir := os.Getenv("CLEARLINE_CONFIG_DIR")
	if configDir == "" {
		configDir = "/etc/clearline"
	}
	v.SetConfigFile(fmt.Sprintf("%s/config.yaml", configDir))
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CLEARLINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.schema_dir", "/etc/clearline/schemas")
	v.SetDefault("engine.result_secret", "")

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("auth.token_secret", "")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 5)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "clearline")
	v.SetDefault("database.postgres.user", "clearline")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("sinks.parquet.enabled", false)
	v.SetDefault("sinks.parquet.endpoint_url", "http://minio:9000")
	v.SetDefault("sinks.parquet.region", "")
	v.SetDefault("sinks.parquet.use_ssl", false)
	v.SetDefault("sinks.parquet.bucket", "clearline-clean")
	v.SetDefault("sinks.parquet.base_prefix", "datasets")

	v.SetDefault("sinks.opensearch.enabled", false)
	v.SetDefault("sinks.opensearch.url", "https://localhost:9200")
	v.SetDefault("sinks.opensearch.username", "admin")
	v.SetDefault("sinks.opensearch.password", "")
	v.SetDefault("sinks.opensearch.tls_skip_verify", true)
	v.SetDefault("sinks.opensearch.index_prefix", "clearline-quarantine")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
