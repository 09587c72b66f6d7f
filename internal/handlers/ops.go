package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/joichat/relay/internal/relay"
)

// API exposes the read-only ops surface next to the websocket endpoint.
type API struct {
	Relay *relay.Relay
}

// Rooms GET /api/rooms — room directory with member counts.
func (a *API) Rooms(c *fiber.Ctx) error {
	return c.JSON(a.Relay.RoomDirectory())
}

// Health GET /healthz
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
