package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/clock-weather/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
// MaxRetries of 0 means a single attempt.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// maxBodyBytes caps how much of a provider body is read.
const maxBodyBytes = 4 << 20

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// response is a fully read upstream reply.
type response struct {
	status int
	body   []byte
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequest executes the request behind a circuit breaker, retrying with
// exponential backoff when configured. Only transport errors, 429 and 5xx
// count against the breaker; rejected credentials say nothing about the
// upstream's health. Whatever status the upstream finally answers with is
// returned to the caller for mapping. Transport failures and an open
// breaker come back as *weather.NetworkError.
func doRequest(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (response, error) {
	if cfg.Client == nil {
		return response{}, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return response{}, errInvalidConfig
	}

	var attempt int
	for {
		if err := ctx.Err(); err != nil {
			return response{}, &weather.NetworkError{Err: err}
		}

		req, err := buildRequest(ctx)
		if err != nil {
			return response{}, err
		}

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if readErr != nil {
				return nil, readErr
			}

			r := response{status: resp.StatusCode, body: body}
			if r.status == http.StatusTooManyRequests {
				return r, errRateLimited
			}
			if r.status >= 500 {
				return r, fmt.Errorf("%w: %d", errServerError, r.status)
			}
			return r, nil
		})

		if err == nil {
			return result.(response), nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return response{}, &weather.NetworkError{Err: fmt.Errorf("%w: %v", errCircuitOpen, err)}
		}

		if attempt >= cfg.Backoff.MaxRetries {
			if r, ok := result.(response); ok {
				return r, nil
			}
			return response{}, &weather.NetworkError{Err: err}
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return response{}, &weather.NetworkError{Err: ctx.Err()}
		case <-timer.C:
		}

		attempt++
	}
}
