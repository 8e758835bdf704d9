package store

import (
	"context"
	"sync"

	"github.com/i474232898/clock-weather/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory ConfigStore. It is used when no
// store path is configured and in tests.
type MemoryStore struct {
	mu  sync.RWMutex
	cfg weather.ProviderConfig
}

// NewMemoryStore creates a MemoryStore seeded with cfg.
func NewMemoryStore(cfg weather.ProviderConfig) *MemoryStore {
	return &MemoryStore{cfg: cfg}
}

// LoadConfig returns the stored config.
func (s *MemoryStore) LoadConfig(_ context.Context) (weather.ProviderConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, nil
}

// SaveConfig replaces the stored config.
func (s *MemoryStore) SaveConfig(ctx context.Context, cfg weather.ProviderConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}
