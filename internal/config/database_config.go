package config

import (
	"net/url"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/eval-hub/eval-dashboard/internal/validation"
)

const (
	// Local store backends
	BackendSQL    = "sql"
	BackendMemory = "memory"

	// These are the only drivers currently supported
	SQLITE_DRIVER   = "sqlite"
	POSTGRES_DRIVER = "pgx"
)

type DatabaseConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=sql memory"`
	// SQL is only checked for the sql backend
	SQL SQLDatabaseConfig `mapstructure:"sql" validate:"-"`
}

type SQLDatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=sqlite pgx"`
	URL             string        `mapstructure:"url" validate:"required"`
	DatabaseName    string        `mapstructure:"database_name,omitempty"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime,omitempty"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns,omitempty" validate:"gte=0"`
	MaxOpenConns    int           `mapstructure:"max_open_conns,omitempty" validate:"gte=0"`
}

func (d *DatabaseConfig) Validate() error {
	validate, err := validation.NewValidator()
	if err != nil {
		return err
	}
	return d.validate(validate)
}

func (d *DatabaseConfig) validate(validate *validator.Validate) error {
	if err := validate.Struct(d); err != nil {
		return err
	}
	if d.Backend != BackendSQL {
		return nil
	}
	return validate.Struct(&d.SQL)
}

// GetConnectionURL returns the URL without the password so that it can be logged.
func (s *SQLDatabaseConfig) GetConnectionURL() string {
	parsed, err := url.Parse(s.URL)
	if err != nil {
		return s.Driver + "://<parse-error>"
	}
	// Remove password from userinfo
	if parsed.User != nil {
		parsed.User = url.User(parsed.User.Username())
	}
	return parsed.String()
}
