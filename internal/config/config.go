package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Weather sources the clock can read from.
const (
	SourceDirect = "direct"
	SourceProxy  = "proxy"
)

type AppConfig struct {
	Port string `env:"PORT" envDefault:"8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// HTTPTimeout bounds every outbound request.
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	Upstream UpstreamConfig `envPrefix:"UPSTREAM_"`

	// Source selects how the clock reaches the provider: straight to
	// Meteosource or through a weather proxy.
	Source   string `env:"WEATHER_SOURCE" envDefault:"direct"`
	ProxyURL string `env:"WEATHER_PROXY_URL" envDefault:"http://localhost:8080/api"`

	Cache CacheConfig `envPrefix:"CACHE_"`

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"30m"`

	// StorePath is the bbolt file holding the provider config. Empty keeps
	// it in memory.
	StorePath string `env:"STORE_PATH" envDefault:"clock-weather.db"`
}

// UpstreamConfig describes the Meteosource endpoint and the defaults used
// when no per-request key or place is given.
type UpstreamConfig struct {
	BaseURL    string `env:"BASE_URL" envDefault:"https://www.meteosource.com/api/v1/free/point"`
	APIKey     string `env:"API_KEY"`
	PlaceID    string `env:"PLACE_ID" envDefault:"temuco"`
	Language   string `env:"LANGUAGE" envDefault:"es"`
	MaxRetries int    `env:"MAX_RETRIES" envDefault:"0"`
}

type CacheConfig struct {
	TTL          time.Duration `env:"TTL" envDefault:"10m"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"15s"`
	JoinRetry    bool          `env:"JOIN_RETRY" envDefault:"true"`
}

// Load reads configuration from the environment, after loading a .env file
// when one exists.
func Load() (*AppConfig, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout))
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("UPSTREAM_BASE_URL must not be empty"))
	}
	if c.Upstream.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("UPSTREAM_MAX_RETRIES must not be negative, got %d", c.Upstream.MaxRetries))
	}
	switch c.Source {
	case SourceDirect:
	case SourceProxy:
		if c.ProxyURL == "" {
			errs = append(errs, errors.New("WEATHER_PROXY_URL is required when WEATHER_SOURCE=proxy"))
		}
	default:
		errs = append(errs, fmt.Errorf("WEATHER_SOURCE must be %q or %q, got %q", SourceDirect, SourceProxy, c.Source))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL))
	}
	if c.Cache.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_FETCH_TIMEOUT must be positive, got %s", c.Cache.FetchTimeout))
	}
	if c.RefreshInterval < time.Minute {
		errs = append(errs, fmt.Errorf("REFRESH_INTERVAL must be at least 1m, got %s", c.RefreshInterval))
	}
	return errors.Join(errs...)
}
