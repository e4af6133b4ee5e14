package handler

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/service"
	"github.com/voiceforge/api/internal/store"
	"github.com/voiceforge/api/pkg/response"
)

// UploadHandler manages uploaded audio assets over HTTP.
type UploadHandler struct {
	uploads *service.UploadService
}

func NewUploadHandler(uploads *service.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Create handles POST /api/uploads (multipart form, field "file")
func (h *UploadHandler) Create(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Missing file field", nil)
	}

	upload, err := h.uploads.Save(c.Context(), fileHeader)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedMedia) {
			return response.Error(c, fiber.StatusUnsupportedMediaType, response.CodeValidationError,
				"Unsupported audio format, expected wav, mp3 or m4a", nil)
		}
		if errors.Is(err, service.ErrFileTooLarge) {
			return response.Error(c, fiber.StatusRequestEntityTooLarge, response.CodeValidationError,
				"File exceeds the upload size limit", nil)
		}
		log.Printf("save upload: %v", err)
		return response.ServiceError(c, "Failed to store upload")
	}

	return response.Created(c, upload)
}

// Get handles GET /api/uploads/:id
func (h *UploadHandler) Get(c *fiber.Ctx) error {
	upload, err := h.uploads.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrUploadNotFound) {
			return response.NotFound(c, "Upload not found")
		}
		log.Printf("get upload: %v", err)
		return response.ServiceError(c, "Failed to fetch upload")
	}
	return response.OK(c, upload)
}

// List handles GET /api/uploads
func (h *UploadHandler) List(c *fiber.Ctx) error {
	limit := parseIntQuery(c, "limit", 100)
	if limit < 1 || limit > 200 {
		limit = 100
	}
	offset := parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	uploads, err := h.uploads.List(c.Context(), limit, offset)
	if err != nil {
		log.Printf("list uploads: %v", err)
		return response.ServiceError(c, "Failed to list uploads")
	}
	if uploads == nil {
		uploads = []*model.Upload{}
	}

	return response.OK(c, model.UploadListResponse{Uploads: uploads})
}

// Delete handles DELETE /api/uploads/:id
func (h *UploadHandler) Delete(c *fiber.Ctx) error {
	if err := h.uploads.Delete(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, store.ErrUploadNotFound) {
			return response.NotFound(c, "Upload not found")
		}
		if errors.Is(err, service.ErrUploadInUse) {
			return response.Conflict(c, "Upload is still referenced by an active voice")
		}
		log.Printf("delete upload: %v", err)
		return response.ServiceError(c, "Failed to delete upload")
	}
	return response.NoContent(c)
}
