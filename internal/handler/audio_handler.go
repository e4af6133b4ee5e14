package handler

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/service"
	"github.com/voiceforge/api/pkg/response"
)

// AudioHandler serves synthesized result audio.
type AudioHandler struct {
	files *service.FileService
}

func NewAudioHandler(files *service.FileService) *AudioHandler {
	return &AudioHandler{files: files}
}

// Get handles GET /api/audio/:audioId
func (h *AudioHandler) Get(c *fiber.Ctx) error {
	audioID := c.Params("audioId")

	audio, err := h.files.ReadResult(c.Context(), audioID)
	if err != nil {
		if errors.Is(err, client.ErrObjectNotFound) {
			return response.NotFound(c, "Audio not found")
		}
		log.Printf("read result audio %s: %v", audioID, err)
		return response.ServiceError(c, "Failed to read audio")
	}

	c.Set("Content-Type", "audio/wav")
	c.Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.wav"`, audioID))
	return c.Send(audio)
}
