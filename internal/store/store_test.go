package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/clock-weather/internal/weather"
)

var (
	_ weather.ConfigStore = (*MemoryStore)(nil)
	_ weather.ConfigStore = (*BoltStore)(nil)
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(weather.ProviderConfig{PlaceID: "temuco"})

	cfg, err := s.LoadConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, "temuco", cfg.PlaceID)
	require.Empty(t, cfg.APIKey)

	want := weather.ProviderConfig{APIKey: "key", PlaceID: "london"}
	require.NoError(t, s.SaveConfig(ctx, want))

	cfg, err = s.LoadConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, want, cfg)
}

func TestBoltStoreEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg, err := s.LoadConfig(context.Background())
	require.NoError(t, err)
	require.Equal(t, weather.ProviderConfig{}, cfg)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	s, err := Open(path)
	require.NoError(t, err)
	want := weather.ProviderConfig{APIKey: "secret-key", PlaceID: "temuco"}
	require.NoError(t, s.SaveConfig(ctx, want))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg, err := s.LoadConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, want, cfg)

	require.NoError(t, s.SaveConfig(ctx, weather.ProviderConfig{APIKey: "other", PlaceID: "london"}))
	cfg, err = s.LoadConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, "london", cfg.PlaceID)
}

func TestBoltStoreCanceledContext(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.SaveConfig(ctx, weather.ProviderConfig{APIKey: "k", PlaceID: "p"}), context.Canceled)
	_, err = s.LoadConfig(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
