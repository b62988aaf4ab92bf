package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// APIBaseURL is the identity service the storefront signs visitors in with.
	APIBaseURL     string        `env:"EDUMALL_API_BASE_URL" envDefault:"http://localhost:8080"`
	StateFile      string        `env:"EDUMALL_STATE_FILE" envDefault:"edumall-state.db"`
	VaultKey       string        `env:"EDUMALL_VAULT_KEY"`
	Port           int           `env:"EDUMALL_PORT" envDefault:"3000"`
	RequestTimeout time.Duration `env:"EDUMALL_REQUEST_TIMEOUT" envDefault:"10s"`
	ResendCooldown time.Duration `env:"EDUMALL_RESEND_COOLDOWN" envDefault:"30s"`
	CloseDelay     time.Duration `env:"EDUMALL_CLOSE_DELAY" envDefault:"1500ms"`

	Env                 string        `env:"ENV" envDefault:"dev"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

// LoadConfig reads the storefront configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("EDUMALL_API_BASE_URL is required")
	}
	if c.Env == "prod" && c.VaultKey == "" {
		return errors.New("EDUMALL_VAULT_KEY is required in prod")
	}
	if c.ResendCooldown < 0 || c.CloseDelay < 0 {
		return errors.New("resend cooldown and close delay must not be negative")
	}
	return nil
}
