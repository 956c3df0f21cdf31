package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/eval-hub/eval-dashboard/internal/validation"
)

// EnvPrefix is the prefix of the environment variables that override the configuration,
// for example EVAL_DASHBOARD_API_BASE_URL.
const EnvPrefix = "EVAL_DASHBOARD"

// DefaultConfigFile is the YAML file read when no path is given. A missing file is not an error.
const DefaultConfigFile = "eval-dashboard.yaml"

type Config struct {
	API       *APIConfig       `mapstructure:"api" validate:"required"`
	Database  *DatabaseConfig  `mapstructure:"database" validate:"required"`
	Cache     *CacheConfig     `mapstructure:"cache"`
	Logging   *LoggingConfig   `mapstructure:"logging"`
	Telemetry *TelemetryConfig `mapstructure:"telemetry"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
	// TokenFile persists the bearer token between runs, empty keeps it in memory only
	TokenFile string `mapstructure:"token_file"`
	// MaxResponseBytes limits the size of a response body that is read
	MaxResponseBytes int64    `mapstructure:"max_response_bytes" validate:"gte=0"`
	LoginPath        string   `mapstructure:"login_path"`
	AuthPaths        []string `mapstructure:"auth_paths"`
}

type CacheConfig struct {
	// RollbackOnFailure removes the optimistic entry when a write is rejected
	RollbackOnFailure bool `mapstructure:"rollback_on_failure"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding" validate:"omitempty,oneof=json console"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Exporter is "stdout", "otlp" (gRPC) or "otlphttp"
	Exporter     string  `mapstructure:"exporter" validate:"omitempty,oneof=stdout otlp otlphttp"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", time.Duration(0))
	v.SetDefault("api.token_file", "")
	v.SetDefault("api.max_response_bytes", int64(10<<20))
	v.SetDefault("api.login_path", "/login")
	v.SetDefault("api.auth_paths", []string{"/login", "/register"})

	v.SetDefault("database.backend", BackendSQL)
	v.SetDefault("database.sql.driver", SQLITE_DRIVER)
	v.SetDefault("database.sql.url", "file:eval-dashboard.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.sql.database_name", "eval_dashboard")
	v.SetDefault("database.sql.max_open_conns", 0)
	v.SetDefault("database.sql.max_idle_conns", 0)
	v.SetDefault("database.sql.conn_max_lifetime", time.Duration(0))

	v.SetDefault("cache.rollback_on_failure", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", "eval-dashboard")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// NewViper returns a viper instance with the defaults and the environment binding set up.
// The command line layer binds its flags to the returned instance.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads the configuration using the hierarchy defaults < YAML < ENV (< flags bound to v).
// An empty path falls back to DefaultConfigFile, which may be missing.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(err) {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, os.ErrNotExist) || errors.As(err, &notFound)
}

// Validate checks the values that can not be defaulted.
func (c *Config) Validate() error {
	validate, err := validation.NewValidator()
	if err != nil {
		return err
	}
	if c.Cache == nil {
		c.Cache = &CacheConfig{RollbackOnFailure: true}
	}
	if c.Logging == nil {
		c.Logging = &LoggingConfig{Level: "info", Encoding: "console"}
	}
	if c.Telemetry == nil {
		c.Telemetry = &TelemetryConfig{SampleRatio: 1}
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Database.validate(validate)
}
