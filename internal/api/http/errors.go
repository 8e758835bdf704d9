package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/i474232898/clock-weather/internal/weather"
)

// ErrorHandler renders every error as {"error": true, "message", "status"}.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		if code >= fiber.StatusInternalServerError {
			log.Error().Err(err).Int("status", code).Str("path", c.Path()).Msg("request failed")
		}
		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": errorMessage(err),
			"status":  code,
		})
	}
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, weather.ErrInvalidDays), errors.Is(err, weather.ErrInvalidConfig):
		return fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case weather.IsNetwork(err):
		return fiber.StatusBadGateway
	}
	if s := weather.StatusCode(err); s != 0 {
		if s >= 400 && s <= 599 {
			return s
		}
		return fiber.StatusBadGateway
	}
	var pe *weather.ProviderError
	if errors.As(err, &pe) {
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// errorMessage prefers the provider's own wording over the wrapped chain.
func errorMessage(err error) string {
	var ue *weather.UpstreamError
	if errors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	var pe *weather.ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusText(http.StatusGatewayTimeout)
	}
	return err.Error()
}
