package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the process configuration, loaded from yaml and overridable via
// ESG_SYNC_* environment variables.
type Config struct {
	ID          string   `mapstructure:"id" validate:"required"`
	LogLevel    string   `mapstructure:"log_level"`
	Concurrency int      `mapstructure:"concurrency" validate:"required,gt=0"`
	Postgres    Postgres `mapstructure:"postgres" validate:"required"`
	Vault       Vault    `mapstructure:"vault" validate:"required"`
	HTTP        HTTP     `mapstructure:"http"`
}

type Postgres struct {
	Address        string `mapstructure:"address" validate:"required"`
	Port           int    `mapstructure:"port" validate:"required,gt=0"`
	Username       string `mapstructure:"username" validate:"required"`
	Password       string `mapstructure:"password" validate:"required"`
	DBName         string `mapstructure:"db_name" validate:"required"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connection" validate:"required,gt=0"`
}

// Vault locates the secret store used to resolve connector credential
// references. The token itself never appears in logs.
type Vault struct {
	Address       string `mapstructure:"address" validate:"required"`
	Token         string `mapstructure:"token" validate:"required"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
}

type HTTP struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"gte=0"`
}

const defaultHTTPTimeoutSeconds = 30

func NewConfig() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.HTTP.TimeoutSeconds == 0 {
		cfg.HTTP.TimeoutSeconds = defaultHTTPTimeoutSeconds
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
