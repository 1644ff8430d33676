package ws

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facestream/internal/session"
)

// Handler opens a fresh session for every connection.
func Handler(hub *Hub, handler MessageHandler, buffer int, logger *slog.Logger) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		st := session.NewState(uuid.NewString())
		client := NewClient(hub, c, st, handler, buffer, logger)

		if !hub.Register(client) {
			_ = c.Close()
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go client.WritePump()
		client.ReadPump(ctx)
	})
}

func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}
