package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/i474232898/clock-weather/internal/api/http"
	"github.com/i474232898/clock-weather/internal/config"
	"github.com/i474232898/clock-weather/internal/logging"
	"github.com/i474232898/clock-weather/internal/weather/providers"
)

// weather-proxy serves only the /api/weather endpoints, keeping the provider
// key off the browser.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	upstream := providers.NewMeteosourceProvider(httpClient, providers.MeteosourceOptions{
		BaseURL:        cfg.Upstream.BaseURL,
		DefaultAPIKey:  cfg.Upstream.APIKey,
		DefaultPlaceID: cfg.Upstream.PlaceID,
		Language:       cfg.Upstream.Language,
		Backoff:        providers.BackoffConfig{MaxRetries: cfg.Upstream.MaxRetries},
	})
	if cfg.Upstream.APIKey == "" {
		log.Warn().Msg("UPSTREAM_API_KEY is empty; /api/weather will be rejected upstream")
	}

	app := httpapi.NewApp("weather-proxy", log)
	httpapi.RegisterProxyRoutes(app, upstream, log)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("weather-proxy listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
