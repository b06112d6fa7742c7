package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// DevBackend configures the in-memory stand-in for the auth backend.
type DevBackend struct {
	Env             string        `env:"APP_ENV" envDefault:"dev"`
	Port            int           `env:"DEV_BACKEND_PORT" envDefault:"9090"`
	JWTSecret       string        `env:"DEV_JWT_SECRET" envDefault:"dev-secret-change-me"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	AdminEmail      string        `env:"DEV_ADMIN_EMAIL" envDefault:"admin@projecthub.local"`
	AdminPassword   string        `env:"DEV_ADMIN_PASSWORD" envDefault:"admin12345"`
	AdminName       string        `env:"DEV_ADMIN_NAME" envDefault:"Admin"`
}

func LoadDevBackend() (DevBackend, error) {
	if err := loadDotEnv(); err != nil {
		return DevBackend{}, err
	}

	var cfg DevBackend
	if err := env.Parse(&cfg); err != nil {
		return DevBackend{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if cfg.JWTSecret == "" {
		return DevBackend{}, fmt.Errorf("config: DEV_JWT_SECRET must not be empty")
	}
	return cfg, nil
}

func (c DevBackend) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
