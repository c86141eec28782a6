package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Models    ModelsConfig    `mapstructure:"models"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// ModelsConfig points at the persisted classifier metadata records
type ModelsConfig struct {
	URLPath   string `mapstructure:"url_path"`
	EmailPath string `mapstructure:"email_path"`
}

// RiskConfig holds the risk tier boundaries on the 0-100 scale
type RiskConfig struct {
	Safe       float64 `mapstructure:"safe"`
	Suspicious float64 `mapstructure:"suspicious"`
	Dangerous  float64 `mapstructure:"dangerous"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Schema          string        `mapstructure:"schema"`
}

func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}, "search_path": {c.Schema}}.Encode(),
	}
	return u.String()
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	StreamName string `mapstructure:"stream_name"`
	// MinLevel is the lowest risk level that gets published (Suspicious or Dangerous)
	MinLevel string `mapstructure:"min_level"`
}

// AuthConfig enables API key checks on /api/v1 when keys are listed
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

// DispatchConfig sizes the asynchronous outcome dispatcher (audit, events, stats)
type DispatchConfig struct {
	QueueSize      int           `mapstructure:"queue_size"`
	Workers        int           `mapstructure:"workers"`
	ObserveTimeout time.Duration `mapstructure:"observe_timeout"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "phishguard")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 5000)
	v.SetDefault("server.grpc_port", 5001)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("models.url_path", "models/url_model_metadata.json")
	v.SetDefault("models.email_path", "models/email_model_metadata.json")

	v.SetDefault("risk.safe", 30)
	v.SetDefault("risk.suspicious", 60)
	v.SetDefault("risk.dangerous", 100)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "phishguard")
	v.SetDefault("database.dbname", "phishguard")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "phishguard:")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.stream_name", "PHISHGUARD_PREDICTIONS")
	v.SetDefault("nats.min_level", "Suspicious")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_minute", 120)

	v.SetDefault("dispatch.queue_size", 1024)
	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("dispatch.observe_timeout", 2*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.time_format", time.RFC3339)
}

// Load reads configuration from file and environment variables.
// A missing config file is not an error; defaults and env vars still apply.
func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/phishguard")
	}

	v.SetEnvPrefix("PHISHGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// viper doesn't auto-bind nested struct fields
	v.BindEnv("app.environment", "PHISHGUARD_APP_ENVIRONMENT")
	v.BindEnv("models.url_path", "PHISHGUARD_MODELS_URL_PATH")
	v.BindEnv("models.email_path", "PHISHGUARD_MODELS_EMAIL_PATH")
	v.BindEnv("redis.enabled", "PHISHGUARD_REDIS_ENABLED")
	v.BindEnv("redis.host", "PHISHGUARD_REDIS_HOST")
	v.BindEnv("redis.port", "PHISHGUARD_REDIS_PORT")
	v.BindEnv("redis.password", "PHISHGUARD_REDIS_PASSWORD")
	v.BindEnv("database.enabled", "PHISHGUARD_DATABASE_ENABLED")
	v.BindEnv("database.host", "PHISHGUARD_DATABASE_HOST")
	v.BindEnv("database.port", "PHISHGUARD_DATABASE_PORT")
	v.BindEnv("database.user", "PHISHGUARD_DATABASE_USER")
	v.BindEnv("database.password", "PHISHGUARD_DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "PHISHGUARD_DATABASE_DBNAME")
	v.BindEnv("nats.enabled", "PHISHGUARD_NATS_ENABLED")
	v.BindEnv("nats.url", "PHISHGUARD_NATS_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants the rest of the service relies on
func (c *Config) Validate() error {
	if c.Risk.Safe <= 0 || c.Risk.Suspicious < c.Risk.Safe || c.Risk.Dangerous < c.Risk.Suspicious {
		return fmt.Errorf("invalid risk thresholds: safe=%v suspicious=%v dangerous=%v",
			c.Risk.Safe, c.Risk.Suspicious, c.Risk.Dangerous)
	}
	return nil
}
