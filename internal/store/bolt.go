package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/i474232898/clock-weather/internal/weather"
)

var (
	settingsBucket = []byte("settings")
	keyAPIKey      = []byte("weatherApiKey")
	keyPlaceID     = []byte("weatherPlaceId")
)

// ErrClosed is returned by a BoltStore after Close.
var ErrClosed = errors.New("store: closed")

// BoltStore persists the provider config in a bbolt file, one key per field.
type BoltStore struct {
	db *bolt.DB
}

// Open initializes or opens a BoltStore at the given path.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(settingsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create settings bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadConfig reads the stored config. Missing keys load as empty strings.
func (s *BoltStore) LoadConfig(ctx context.Context) (weather.ProviderConfig, error) {
	var cfg weather.ProviderConfig
	if err := ctx.Err(); err != nil {
		return cfg, err
	}
	if s == nil || s.db == nil {
		return cfg, ErrClosed
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(settingsBucket)
		if b == nil {
			return nil
		}
		cfg.APIKey = string(b.Get(keyAPIKey))
		cfg.PlaceID = string(b.Get(keyPlaceID))
		return nil
	})
	if err != nil {
		return weather.ProviderConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes both fields in one transaction.
func (s *BoltStore) SaveConfig(ctx context.Context, cfg weather.ProviderConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return ErrClosed
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(settingsBucket)
		if err != nil {
			return err
		}
		if err := b.Put(keyAPIKey, []byte(cfg.APIKey)); err != nil {
			return err
		}
		return b.Put(keyPlaceID, []byte(cfg.PlaceID))
	})
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
