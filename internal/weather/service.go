package weather

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service is what the dashboard widgets talk to. Every read goes through the
// shared Cache, so widgets mounting together cost one upstream call.
type Service struct {
	cache   *Cache
	configs ConfigStore
	checker Source
	now     func() time.Time
	log     zerolog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// ServiceOptions configures a Service. Zero values fall back to defaults.
type ServiceOptions struct {
	Now    func() time.Time
	Rand   *rand.Rand
	Logger *zerolog.Logger
}

// Status describes the cache for the status endpoint.
type Status struct {
	State     State      `json:"state"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
	TTL       string     `json:"ttl"`
}

// NewService creates a new Service. checker validates candidate provider
// configs before they are saved; it is usually the cache's own source.
func NewService(cache *Cache, configs ConfigStore, checker Source, opts ServiceOptions) *Service {
	s := &Service{
		cache:   cache,
		configs: configs,
		checker: checker,
		now:     opts.Now,
		rnd:     opts.Rand,
		log:     zerolog.Nop(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "service").Logger()
	}
	return s
}

// Raw returns the provider payload as cached.
func (s *Service) Raw(ctx context.Context) (*Payload, error) {
	return s.cache.Get(ctx)
}

// Current returns the normalized current conditions.
func (s *Service) Current(ctx context.Context) (Snapshot, error) {
	p, err := s.cache.Get(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Summarize(p, s.fetchedAt(p), DefaultHourlyPoints), nil
}

// Forecast returns a forecast of the given number of days (1..MaxForecastDays).
func (s *Service) Forecast(ctx context.Context, days int) (Forecast, error) {
	if days < 1 || days > MaxForecastDays {
		return nil, ErrInvalidDays
	}

	p, err := s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildForecast(p, days, s.now(), s.rnd)
}

// AirQuality returns the estimated air quality for the current conditions.
func (s *Service) AirQuality(ctx context.Context) (AirQuality, error) {
	p, err := s.cache.Get(ctx)
	if err != nil {
		return AirQuality{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return EstimateAirQuality(p, s.now(), s.rnd), nil
}

// Status reports the cache state without triggering a fetch.
func (s *Service) Status() Status {
	st := Status{
		State: s.cache.State(),
		TTL:   s.cache.TTL().String(),
	}
	if e, ok := s.cache.Peek(); ok {
		ts := e.FetchedAt.UTC()
		st.FetchedAt = &ts
	}
	return st
}

// Config returns the stored provider config.
func (s *Service) Config(ctx context.Context) (ProviderConfig, error) {
	if s.configs == nil {
		return ProviderConfig{}, nil
	}
	return s.configs.LoadConfig(ctx)
}

// UpdateConfig validates cfg with a live request and, when the provider
// accepts it, stores it and drops the cached payload so the next read uses
// the new place. Provider errors are returned unchanged in kind so callers
// can tell a bad key from an unknown place.
func (s *Service) UpdateConfig(ctx context.Context, cfg ProviderConfig) error {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.PlaceID = strings.TrimSpace(cfg.PlaceID)
	if !cfg.IsComplete() {
		return ErrInvalidConfig
	}
	if s.configs == nil {
		return fmt.Errorf("no config store configured")
	}

	if _, err := s.checker.Fetch(ctx, cfg); err != nil {
		s.log.Info().Err(err).Str("place_id", cfg.PlaceID).Msg("provider rejected config")
		return fmt.Errorf("validate config: %w", err)
	}

	if err := s.configs.SaveConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	s.cache.Invalidate()
	s.log.Info().Str("place_id", cfg.PlaceID).Msg("provider config updated")
	return nil
}

// Subscribe forwards cache updates.
func (s *Service) Subscribe() (<-chan Update, func()) {
	return s.cache.Subscribe()
}

func (s *Service) fetchedAt(p *Payload) time.Time {
	if e, ok := s.cache.Peek(); ok && e.Payload == p {
		return e.FetchedAt
	}
	return s.now()
}
