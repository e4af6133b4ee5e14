package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/voiceforge/api/internal/engine"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/store"
	"github.com/voiceforge/api/pkg/response"
)

// JobHandler exposes the job lifecycle over HTTP: submit, inspect, cancel,
// retry.
type JobHandler struct {
	engine   *engine.Engine
	validate *validator.Validate
}

func NewJobHandler(eng *engine.Engine) *JobHandler {
	return &JobHandler{
		engine:   eng,
		validate: validator.New(),
	}
}

// Create handles POST /api/tts/jobs
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var spec model.JobSpec
	if err := c.BodyParser(&spec); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validate.Struct(&spec); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.engine.Submit(c.Context(), &spec)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			return response.ValidationError(c, verr.Message, nil)
		}
		log.Printf("submit job: %v", err)
		return response.ServiceError(c, "Failed to submit job")
	}

	return response.Accepted(c, job)
}

// Get handles GET /api/tts/jobs/:id
func (h *JobHandler) Get(c *fiber.Ctx) error {
	job, err := h.engine.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		log.Printf("get job: %v", err)
		return response.ServiceError(c, "Failed to fetch job")
	}
	return response.OK(c, job)
}

// List handles GET /api/tts/jobs
func (h *JobHandler) List(c *fiber.Ctx) error {
	state := c.Query("state")
	if state != "" {
		switch model.JobState(state) {
		case model.JobStateQueued, model.JobStateRunning, model.JobStateSucceeded,
			model.JobStateFailed, model.JobStateCancelled:
		default:
			return response.ValidationError(c, "Invalid state filter", nil)
		}
	}

	limit := parseIntQuery(c, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	jobs, err := h.engine.List(c.Context(), state, limit, offset)
	if err != nil {
		log.Printf("list jobs: %v", err)
		return response.ServiceError(c, "Failed to list jobs")
	}
	if jobs == nil {
		jobs = []*model.Job{}
	}

	return response.OK(c, model.JobListResponse{Jobs: jobs, Limit: limit, Offset: offset})
}

// Cancel handles POST /api/tts/jobs/:id/cancel
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	job, err := h.engine.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, engine.ErrAlreadyTerminal) {
			return response.Conflict(c, "Job already reached a terminal state")
		}
		log.Printf("cancel job: %v", err)
		return response.ServiceError(c, "Failed to cancel job")
	}
	return response.OK(c, job)
}

// Retry handles POST /api/tts/jobs/:id/retry
func (h *JobHandler) Retry(c *fiber.Ctx) error {
	job, err := h.engine.Retry(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, engine.ErrNotRetryable) {
			return response.Conflict(c, "Only failed or cancelled jobs can be retried")
		}
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			return response.ValidationError(c, verr.Message, nil)
		}
		log.Printf("retry job: %v", err)
		return response.ServiceError(c, "Failed to retry job")
	}
	return response.Accepted(c, job)
}

func parseIntQuery(c *fiber.Ctx, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
