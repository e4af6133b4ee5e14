package handler

import (
	"context"
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/voiceforge/api/internal/engine"
	"github.com/voiceforge/api/internal/store"
	ws "github.com/voiceforge/api/internal/websocket"
)

// WebSocketHandler upgrades job-watch connections and hands them to the hub.
type WebSocketHandler struct {
	engine *engine.Engine
	hub    *ws.Hub
}

func NewWebSocketHandler(eng *engine.Engine, hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{engine: eng, hub: hub}
}

// Upgrade gates /ws/jobs/:jobId on a valid websocket handshake and an
// existing job.
func (h *WebSocketHandler) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		jobID := c.Params("jobId")
		if _, err := h.engine.Get(c.Context(), jobID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.ErrNotFound
			}
			return fiber.ErrInternalServerError
		}

		c.Locals("jobId", jobID)
		return c.Next()
	}
}

// Serve handles the upgraded connection: initial snapshot, then live state
// updates until the client disconnects.
func (h *WebSocketHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		jobID, _ := conn.Locals("jobId").(string)
		if jobID == "" {
			conn.Close()
			return
		}

		snapshot, err := h.engine.Get(context.Background(), jobID)
		if err != nil {
			conn.Close()
			return
		}

		h.hub.HandleConnection(conn, jobID, snapshot)
	})
}
