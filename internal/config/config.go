// Package config loads service configuration from defaults, an optional YAML
// file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/airwaycast/airwaycast/internal/database"
	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/telemetry"
)

// EnvPrefix is the prefix for environment overrides. Nested keys are separated
// by a double underscore, e.g. AIRWAYCAST_DATABASE__HOST.
const EnvPrefix = "AIRWAYCAST_"

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are searched in order when no explicit path is given.
var DefaultPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/airwaycast/config.yaml",
}

// Config is the root configuration shared by all binaries.
type Config struct {
	Environment string          `koanf:"environment" validate:"oneof=development test staging production"`
	LogLevel    string          `koanf:"log_level" validate:"oneof=debug info warn error"`
	Server      ServerConfig    `koanf:"server"`
	Database    DatabaseConfig  `koanf:"database"`
	Redis       RedisConfig     `koanf:"redis"`
	Telemetry   TelemetryConfig `koanf:"telemetry"`
	Auth        AuthConfig      `koanf:"auth"`
	Model       ModelConfig     `koanf:"model"`
	OpenMeteo   OpenMeteoConfig `koanf:"openmeteo"`
	Ambee       AmbeeConfig     `koanf:"ambee"`
	Pipeline    PipelineConfig  `koanf:"pipeline"`
	Worker      WorkerConfig    `koanf:"worker"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            string        `koanf:"port" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	RequireTLS      bool          `koanf:"require_tls"`
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// RedisConfig configures the optional Redis prediction tier.
type RedisConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Addr     string        `koanf:"addr" validate:"required_if=Enabled true"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db" validate:"gte=0"`
	TTL      time.Duration `koanf:"ttl"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Endpoint       string        `koanf:"endpoint" validate:"required_if=Enabled true"`
	SampleRatio    float64       `koanf:"sample_ratio" validate:"gte=0,lte=1"`
	ExportInterval time.Duration `koanf:"export_interval"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	SigningKey string `koanf:"signing_key"`
	Issuer     string `koanf:"issuer" validate:"required"`
	Audience   string `koanf:"audience" validate:"required"`
}

// ModelConfig points at the model bundle artifacts.
type ModelConfig struct {
	PersonalizedPath string `koanf:"personalized_path" validate:"required"`
	EnvironmentPath  string `koanf:"environment_path"`
}

// OpenMeteoConfig configures the live forecast collaborator.
type OpenMeteoConfig struct {
	ForecastURL   string        `koanf:"forecast_url" validate:"required,url"`
	ArchiveURL    string        `koanf:"archive_url" validate:"required,url"`
	AirQualityURL string        `koanf:"air_quality_url" validate:"required,url"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxRetries    uint64        `koanf:"max_retries"`
}

// AmbeeConfig configures the optional pollen supplement. It is disabled
// when APIKey is empty.
type AmbeeConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// PipelineConfig tunes the prediction pipeline.
type PipelineConfig struct {
	LookbackDays int `koanf:"lookback_days" validate:"gte=0,lte=60"`
	DefaultDays  int `koanf:"default_days" validate:"gte=1"`
	MaxDays      int `koanf:"max_days" validate:"gtefield=DefaultDays"`
	MaxUsers     int `koanf:"max_users" validate:"gte=1"`

	// Default coordinates for profiles without a location.
	DefaultLatitude  float64 `koanf:"default_latitude" validate:"gte=-90,lte=90"`
	DefaultLongitude float64 `koanf:"default_longitude" validate:"gte=-180,lte=180"`
}

// DefaultLocation returns the fallback location for profiles without
// coordinates.
func (p PipelineConfig) DefaultLocation() environment.Location {
	return environment.NewLocation("", p.DefaultLatitude, p.DefaultLongitude)
}

// WorkerConfig configures the background worker.
type WorkerConfig struct {
	Interval     time.Duration `koanf:"interval" validate:"gt=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	Concurrency  int           `koanf:"concurrency" validate:"gte=1"`
	BatchSize    int           `koanf:"batch_size" validate:"gte=1"`
	BackfillDays int           `koanf:"backfill_days" validate:"gte=1"`
	HealthPort   string        `koanf:"health_port"`
	PubSub       PubSubConfig  `koanf:"pubsub"`
}

// PubSubConfig configures the optional job subscription.
type PubSubConfig struct {
	Enabled      bool   `koanf:"enabled"`
	ProjectID    string `koanf:"project_id" validate:"required_if=Enabled true"`
	Subscription string `koanf:"subscription" validate:"required_if=Enabled true"`
}

// Default returns the configuration used before any file or env override.
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			RateLimit:       100,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "airwaycast",
			Password:        "localdev",
			Name:            "airwaycast",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  48 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Endpoint:       "localhost:4317",
			SampleRatio:    1,
			ExportInterval: 15 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:   "airwaycast",
			Audience: "airwaycast-api",
		},
		Model: ModelConfig{
			PersonalizedPath: "models/personalized.json",
		},
		OpenMeteo: OpenMeteoConfig{
			ForecastURL:   "https://api.open-meteo.com/v1/forecast",
			ArchiveURL:    "https://archive-api.open-meteo.com/v1/archive",
			AirQualityURL: "https://air-quality-api.open-meteo.com/v1/air-quality",
			Timeout:       10 * time.Second,
			MaxRetries:    2,
		},
		Ambee: AmbeeConfig{
			BaseURL: "https://api.ambeedata.com",
			Timeout: 10 * time.Second,
		},
		Pipeline: PipelineConfig{
			LookbackDays: 7,
			DefaultDays:  7,
			MaxDays:      14,
			MaxUsers:     50,

			// San Francisco
			DefaultLatitude:  37.77,
			DefaultLongitude: -122.42,
		},
		Worker: WorkerConfig{
			Interval:     6 * time.Hour,
			Timeout:      2 * time.Minute,
			Concurrency:  4,
			BatchSize:    25,
			BackfillDays: 14,
			HealthPort:   "8081",
		},
	}
}

// Load builds the configuration from defaults, the config file at path (or
// the first of DefaultPaths found when path is empty) and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Environment == "production" && c.Auth.SigningKey == "" {
		return errors.New("invalid configuration: auth.signing_key is required in production")
	}
	return nil
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

// Connection converts the database section into pool settings.
func (d DatabaseConfig) Connection() database.Config {
	return database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Name,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
	}
}

// TelemetryFor converts the telemetry section for the named service.
func (c *Config) TelemetryFor(serviceName, version string) telemetry.Config {
	return telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.Telemetry.Endpoint,
		Enabled:        c.Telemetry.Enabled,
		SampleRatio:    c.Telemetry.SampleRatio,
		ExportInterval: c.Telemetry.ExportInterval,
	}
}

func envKey(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
