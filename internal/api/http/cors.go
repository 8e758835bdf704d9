package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Origin, Content-Type, Accept, Authorization, X-Request-With"
)

// proxyCORS lets any origin call the proxy endpoints. Preflight requests are
// answered with 200 and an empty body.
func proxyCORS(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
	c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)

	if c.Method() == fiber.MethodOptions {
		c.Status(fiber.StatusOK)
		return nil
	}
	return c.Next()
}
