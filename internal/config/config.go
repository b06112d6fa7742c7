// Package config loads runtime settings from the environment. A .env file
// in the working directory is read first when present; real environment
// variables win over it.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port int    `env:"PORT" envDefault:"8080"`

	Backend BackendConfig `envPrefix:"BACKEND_"`
	Session SessionConfig
	Redis   RedisConfig `envPrefix:"REDIS_"`
	Tracing TracingConfig

	// RoutesFile optionally replaces the built-in route table.
	RoutesFile string `env:"ROUTES_FILE"`

	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	LoginRateLimit     int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	LoginRateWindow    time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"1m"`
	MaxBodyBytes       int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type BackendConfig struct {
	URL              string        `env:"URL,required"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"5s"`
	BreakerThreshold int           `env:"BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN" envDefault:"15s"`
}

type SessionConfig struct {
	CookieSecure        bool          `env:"COOKIE_SECURE" envDefault:"true"`
	AccessTokenTTL      time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL     time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	CheckTimeout        time.Duration `env:"SESSION_CHECK_TIMEOUT" envDefault:"5s"`
	LogoutRedirectDelay time.Duration `env:"LOGOUT_REDIRECT_DELAY" envDefault:"0s"`
	WhoAmICacheTTL      time.Duration `env:"WHOAMI_CACHE_TTL" envDefault:"0s"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type TracingConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"projecthub-gateway"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1"`
}

// Load reads .env (if any) and the process environment.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// Parse builds a Config from an explicit environment, for tests.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// Sanitize clamps values that would make the gateway misbehave.
func (c *Config) Sanitize() {
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = 8080
	}
	if c.IsProduction() {
		c.Session.CookieSecure = true
	}

	if c.Backend.Timeout < 100*time.Millisecond {
		c.Backend.Timeout = 5 * time.Second
	}
	if c.Backend.BreakerThreshold < 1 {
		c.Backend.BreakerThreshold = 5
	}
	if c.Backend.BreakerCooldown < time.Second {
		c.Backend.BreakerCooldown = 15 * time.Second
	}

	if c.Session.AccessTokenTTL <= 0 {
		c.Session.AccessTokenTTL = 15 * time.Minute
	}
	if c.Session.RefreshTokenTTL <= 0 {
		c.Session.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Session.CheckTimeout <= 0 {
		c.Session.CheckTimeout = 5 * time.Second
	}
	if c.Session.LogoutRedirectDelay < 0 {
		c.Session.LogoutRedirectDelay = 0
	}
	if c.Session.WhoAmICacheTTL < 0 {
		c.Session.WhoAmICacheTTL = 0
	}

	if c.LoginRateLimit < 1 {
		c.LoginRateLimit = 10
	}
	if c.LoginRateWindow <= 0 {
		c.LoginRateWindow = time.Minute
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
}

func (c Config) IsProduction() bool {
	return c.Env == "prod"
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("config: read .env: %w", err)
}
