package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/clock-weather/internal/weather"
)

const DefaultMeteosourceURL = "https://www.meteosource.com/api/v1/free/point"

// MeteosourceOptions configures the upstream client. DefaultAPIKey and
// DefaultPlaceID fill whichever field a request leaves empty.
type MeteosourceOptions struct {
	BaseURL        string
	DefaultAPIKey  string
	DefaultPlaceID string
	Language       string
	Backoff        BackoffConfig
}

// MeteosourceProvider talks to the Meteosource point API. It serves the
// proxy endpoints (FetchRaw) and, in direct mode, the cache (Fetch).
type MeteosourceProvider struct {
	name     string
	baseURL  string
	defaults weather.ProviderConfig
	language string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewMeteosourceProvider(client *http.Client, opts MeteosourceOptions) *MeteosourceProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultMeteosourceURL
	}
	backoff := opts.Backoff
	if backoff.MaxRetries > 0 && backoff.InitialInterval <= 0 {
		backoff.InitialInterval = 500 * time.Millisecond
		backoff.MaxInterval = 5 * time.Second
	}

	return &MeteosourceProvider{
		name:    "meteosource",
		baseURL: baseURL,
		defaults: weather.ProviderConfig{
			APIKey:  opts.DefaultAPIKey,
			PlaceID: opts.DefaultPlaceID,
		},
		language: opts.Language,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit: newBreaker("meteosource"),
	}
}

func (p *MeteosourceProvider) Name() string {
	return p.name
}

// Defaults returns the built-in key and place.
func (p *MeteosourceProvider) Defaults() weather.ProviderConfig {
	return p.defaults
}

// Resolve fills empty fields of cfg with the defaults.
func (p *MeteosourceProvider) Resolve(cfg weather.ProviderConfig) weather.ProviderConfig {
	if cfg.APIKey == "" {
		cfg.APIKey = p.defaults.APIKey
	}
	if cfg.PlaceID == "" {
		cfg.PlaceID = p.defaults.PlaceID
	}
	return cfg
}

// URL builds the point request for cfg after applying defaults.
func (p *MeteosourceProvider) URL(cfg weather.ProviderConfig) string {
	cfg = p.Resolve(cfg)

	values := url.Values{}
	values.Set("place_id", cfg.PlaceID)
	values.Set("sections", "all")
	values.Set("timezone", "UTC")
	if p.language != "" {
		values.Set("language", p.language)
	}
	values.Set("units", "metric")
	values.Set("key", cfg.APIKey)

	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

// FetchRaw returns the upstream body untouched on 2xx. Rejected credentials,
// unknown places and other statuses become *weather.UpstreamError with the
// upstream status preserved.
func (p *MeteosourceProvider) FetchRaw(ctx context.Context, cfg weather.ProviderConfig) ([]byte, error) {
	u := p.URL(cfg)
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.ok():
		return resp.body, nil
	case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
		return nil, &weather.UpstreamError{Status: resp.status, Message: "invalid API key, please check your API key"}
	case resp.status == http.StatusNotFound:
		return nil, &weather.UpstreamError{Status: resp.status, Message: "location not found, please check the place id"}
	default:
		return nil, &weather.UpstreamError{
			Status:  resp.status,
			Message: fmt.Sprintf("weather API responded with status %d", resp.status),
		}
	}
}

// Fetch implements weather.Source.
func (p *MeteosourceProvider) Fetch(ctx context.Context, cfg weather.ProviderConfig) (*weather.Payload, error) {
	body, err := p.FetchRaw(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return weather.ParsePayload(body)
}
