package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/clock-weather/internal/common"
	"github.com/i474232898/clock-weather/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the widget handlers into the Fiber app.
func RegisterRoutes(app fiber.Router, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		p, err := service.Raw(c.UserContext())
		if err != nil {
			return err
		}
		if len(p.Raw) == 0 {
			return c.JSON(p)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(p.Raw)
	})

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		snapshot, err := service.Current(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(snapshot)
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		q := forecastQuery{Days: c.QueryInt("days", 0)}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, weather.ErrInvalidDays.Error())
		}

		forecast, err := service.Forecast(c.UserContext(), q.Days)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"days":     q.Days,
			"forecast": forecast,
		})
	})

	v1.Get("/weather/air-quality", func(c *fiber.Ctx) error {
		aq, err := service.AirQuality(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(aq)
	})

	v1.Get("/weather/status", func(c *fiber.Ctx) error {
		return c.JSON(service.Status())
	})

	v1.Get("/weather/events", streamEvents(service))

	v1.Get("/config", func(c *fiber.Ctx) error {
		cfg, err := service.Config(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(configView(cfg))
	})

	v1.Put("/config", func(c *fiber.Ctx) error {
		var req configRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, weather.ErrInvalidConfig.Error())
		}

		cfg := weather.ProviderConfig{APIKey: req.APIKey, PlaceID: req.PlaceID}
		if err := service.UpdateConfig(c.UserContext(), cfg); err != nil {
			return err
		}

		saved, err := service.Config(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(configView(saved))
	})
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	Days int `validate:"required,min=1,max=7"`
}

// configRequest is the body of PUT /api/v1/config.
type configRequest struct {
	APIKey  string `json:"apiKey" validate:"required"`
	PlaceID string `json:"placeId" validate:"required"`
}

func configView(cfg weather.ProviderConfig) fiber.Map {
	return fiber.Map{
		"apiKey":     common.Mask(cfg.APIKey),
		"placeId":    cfg.PlaceID,
		"configured": cfg.IsComplete(),
	}
}
