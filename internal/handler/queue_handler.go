package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/voiceforge/api/internal/engine"
	"github.com/voiceforge/api/pkg/response"
)

// QueueHandler reports admission queue state.
type QueueHandler struct {
	engine *engine.Engine
}

func NewQueueHandler(eng *engine.Engine) *QueueHandler {
	return &QueueHandler{engine: eng}
}

// Status handles GET /api/queue/status
func (h *QueueHandler) Status(c *fiber.Ctx) error {
	return response.OK(c, h.engine.QueueStatus())
}
