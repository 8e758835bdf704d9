package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/i474232898/clock-weather/internal/weather"
)

// RawFetcher returns the provider body untouched. Empty config fields fall
// back to the fetcher's defaults.
type RawFetcher interface {
	FetchRaw(ctx context.Context, cfg weather.ProviderConfig) ([]byte, error)
}

// RegisterProxyRoutes mounts the weather proxy:
//
//	/api/weather      default key and place
//	/api/weather-v02  ?api_key=&place_id= per request
func RegisterProxyRoutes(app fiber.Router, upstream RawFetcher, log zerolog.Logger) {
	log = log.With().Str("component", "proxy").Logger()

	fixed := func(c *fiber.Ctx) error {
		return forward(c, upstream, weather.ProviderConfig{}, log)
	}
	perRequest := func(c *fiber.Ctx) error {
		cfg := weather.ProviderConfig{
			APIKey:  c.Query("api_key"),
			PlaceID: c.Query("place_id"),
		}
		return forward(c, upstream, cfg, log)
	}

	for path, h := range map[string]fiber.Handler{
		"/api/weather":     fixed,
		"/api/weather-v02": perRequest,
	} {
		app.Options(path, proxyCORS)
		app.Get(path, proxyCORS, h)
		app.Post(path, proxyCORS, h)
	}
}

func forward(c *fiber.Ctx, upstream RawFetcher, cfg weather.ProviderConfig, log zerolog.Logger) error {
	body, err := upstream.FetchRaw(c.UserContext(), cfg)
	if err != nil {
		if status := weather.StatusCode(err); status != 0 {
			if status < 400 || status > 599 {
				status = fiber.StatusBadGateway
			}
			log.Info().Err(err).Str("place_id", cfg.PlaceID).Msg("upstream rejected request")
			return c.Status(status).JSON(fiber.Map{
				"error":  errorMessage(err),
				"status": status,
			})
		}
		log.Warn().Err(err).Msg("upstream unreachable")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error fetching weather data: " + err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
