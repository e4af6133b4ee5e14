package handler

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/service"
	"github.com/voiceforge/api/internal/store"
	"github.com/voiceforge/api/pkg/response"
)

// VoiceHandler manages voice records over HTTP.
type VoiceHandler struct {
	voices   *service.VoiceService
	validate *validator.Validate
}

func NewVoiceHandler(voices *service.VoiceService) *VoiceHandler {
	return &VoiceHandler{
		voices:   voices,
		validate: validator.New(),
	}
}

// Create handles POST /api/voices
func (h *VoiceHandler) Create(c *fiber.Ctx) error {
	var req model.CreateVoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validate.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	voice, err := h.voices.Create(c.Context(), &req)
	if err != nil {
		if errors.Is(err, store.ErrUploadNotFound) {
			return response.ValidationError(c, "uploadId does not reference an existing upload", nil)
		}
		if errors.Is(err, store.ErrVoiceNameTaken) {
			return response.Conflict(c, "A voice with this name already exists")
		}
		log.Printf("create voice: %v", err)
		return response.ServiceError(c, "Failed to create voice")
	}

	return response.Created(c, voice)
}

// Get handles GET /api/voices/:id
func (h *VoiceHandler) Get(c *fiber.Ctx) error {
	voice, err := h.voices.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrVoiceNotFound) {
			return response.NotFound(c, "Voice not found")
		}
		log.Printf("get voice: %v", err)
		return response.ServiceError(c, "Failed to fetch voice")
	}
	return response.OK(c, voice)
}

// List handles GET /api/voices
func (h *VoiceHandler) List(c *fiber.Ctx) error {
	limit := parseIntQuery(c, "limit", 100)
	if limit < 1 || limit > 200 {
		limit = 100
	}
	offset := parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	voices, err := h.voices.List(c.Context(), limit, offset)
	if err != nil {
		log.Printf("list voices: %v", err)
		return response.ServiceError(c, "Failed to list voices")
	}
	if voices == nil {
		voices = []*model.Voice{}
	}

	return response.OK(c, model.VoiceListResponse{Voices: voices})
}

// Delete handles DELETE /api/voices/:id
func (h *VoiceHandler) Delete(c *fiber.Ctx) error {
	if err := h.voices.Delete(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, store.ErrVoiceNotFound) {
			return response.NotFound(c, "Voice not found")
		}
		log.Printf("delete voice: %v", err)
		return response.ServiceError(c, "Failed to delete voice")
	}
	return response.NoContent(c)
}
