package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/clock-weather/internal/weather"
)

// ProxyClient reads from a deployed pair of proxy endpoints: the
// zero-argument default endpoint and the parameterized one.
type ProxyClient struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewProxyClient(client *http.Client, baseURL string) *ProxyClient {
	return &ProxyClient{
		name:    "proxy",
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: HTTPClientConfig{Client: client},
		circuit: newBreaker("proxy"),
	}
}

func (p *ProxyClient) Name() string {
	return p.name
}

// URL picks the parameterized endpoint when cfg is complete and the default
// endpoint otherwise.
func (p *ProxyClient) URL(cfg weather.ProviderConfig) string {
	if !cfg.IsComplete() {
		return p.baseURL + "/weather"
	}
	values := url.Values{}
	values.Set("api_key", cfg.APIKey)
	values.Set("place_id", cfg.PlaceID)
	return p.baseURL + "/weather-v02?" + values.Encode()
}

// Fetch implements weather.Source. A non-2xx reply becomes
// *weather.UpstreamError; a 2xx reply carrying {"error": ...} becomes
// *weather.ProviderError.
func (p *ProxyClient) Fetch(ctx context.Context, cfg weather.ProviderConfig) (*weather.Payload, error) {
	u := p.URL(cfg)
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}

	if !resp.ok() {
		msg, _, found := weather.ErrorMessage(resp.body)
		if !found {
			msg = http.StatusText(resp.status)
		}
		return nil, &weather.UpstreamError{Status: resp.status, Message: msg}
	}
	return weather.ParsePayload(resp.body)
}
