package middleware

import "github.com/gofiber/fiber/v2"

// Noop passes the request straight through. It is the smallest possible
// middleware, kept as a wiring placeholder and a template for new ones.
func Noop() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Next()
	}
}
