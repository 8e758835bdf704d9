package weather

import (
	"context"
)

// Source abstracts the endpoint the cache reads from: the Meteosource API
// directly or one of the proxy endpoints.
type Source interface {
	Name() string
	Fetch(ctx context.Context, cfg ProviderConfig) (*Payload, error)
}

// ConfigStore is the contract for persisting the provider configuration.
type ConfigStore interface {
	LoadConfig(ctx context.Context) (ProviderConfig, error)
	SaveConfig(ctx context.Context, cfg ProviderConfig) error
}
