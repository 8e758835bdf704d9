package weather

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidConfig is returned when a provider config is missing required fields.
	ErrInvalidConfig = errors.New("api key and place id are required")
	// ErrInvalidDays is returned for forecast lengths outside 1..MaxForecastDays.
	ErrInvalidDays = fmt.Errorf("days must be between 1 and %d", MaxForecastDays)
)

// NetworkError reports a transport-level failure: DNS, connection refused,
// timeout or an open circuit breaker.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UpstreamError reports a non-2xx response from the provider or the proxy.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream responded with status %d", e.Status)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// ProviderError reports an application-level error embedded in an otherwise
// successful response body, e.g. {"error": "...", "status": 401}.
// Status is zero when the body did not carry one.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return "provider error: " + e.Message
	}
	return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status carried by an UpstreamError or
// ProviderError, or 0 for any other error.
func StatusCode(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Status
	}
	return 0
}

// IsUnauthorized reports whether err signals rejected credentials.
func IsUnauthorized(err error) bool {
	s := StatusCode(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

// IsNotFound reports whether err signals an unknown place id.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
