// Package rayid assigns every request a unique ray ID for tracing.
package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Header carries the ray ID on the response.
const Header = "X-Ray-Id"

// New returns the ray ID middleware. An inbound ray ID is honored so traces
// survive proxy hops; otherwise a fresh UUID is issued.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(Header)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals("ray_id", rid)
		c.Set(Header, rid)
		return c.Next()
	}
}
