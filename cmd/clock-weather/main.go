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
	"github.com/i474232898/clock-weather/internal/scheduler"
	"github.com/i474232898/clock-weather/internal/store"
	"github.com/i474232898/clock-weather/internal/weather"
	"github.com/i474232898/clock-weather/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	meteosource := providers.NewMeteosourceProvider(httpClient, providers.MeteosourceOptions{
		BaseURL:        cfg.Upstream.BaseURL,
		DefaultAPIKey:  cfg.Upstream.APIKey,
		DefaultPlaceID: cfg.Upstream.PlaceID,
		Language:       cfg.Upstream.Language,
		Backoff:        providers.BackoffConfig{MaxRetries: cfg.Upstream.MaxRetries},
	})

	var source weather.Source = meteosource
	if cfg.Source == config.SourceProxy {
		source = providers.NewProxyClient(httpClient, cfg.ProxyURL)
	}

	var configs weather.ConfigStore
	if cfg.StorePath != "" {
		bolt, err := store.Open(cfg.StorePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.StorePath).Msg("failed to open config store")
		}
		defer bolt.Close()
		configs = bolt
	} else {
		configs = store.NewMemoryStore(weather.ProviderConfig{})
	}

	cache := weather.NewCache(source, configs, weather.CacheOptions{
		TTL:          cfg.Cache.TTL,
		FetchTimeout: cfg.Cache.FetchTimeout,
		NoJoinRetry:  !cfg.Cache.JoinRetry,
		Logger:       &log,
	})
	service := weather.NewService(cache, configs, source, weather.ServiceOptions{Logger: &log})

	app := httpapi.NewApp("clock-weather", log)
	httpapi.RegisterRoutes(app, service)
	httpapi.RegisterProxyRoutes(app, meteosource, log)

	// Bind first: in proxy mode the first refresh may go through this
	// server's own proxy routes.
	addr, stopped, err := httpapi.Serve(app, ":"+cfg.Port)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
	log.Info().Str("addr", addr.String()).Str("source", source.Name()).Msg("clock-weather listening")

	// Keep the cache warm even when no widget is open.
	sched := scheduler.New(cache, cfg.RefreshInterval, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	go func() {
		if err := <-stopped; err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
