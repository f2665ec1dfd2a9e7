package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/serkansmg/SunoApiManager/internal/service"
	"github.com/serkansmg/SunoApiManager/internal/store"
	"github.com/serkansmg/SunoApiManager/pkg/response"
)

type GenerationHandler struct {
	generation *service.GenerationService
	download   *service.DownloadService
}

func NewGenerationHandler(gen *service.GenerationService, dl *service.DownloadService) *GenerationHandler {
	return &GenerationHandler{
		generation: gen,
		download:   dl,
	}
}

// Start handles POST /api/generation/start
func (h *GenerationHandler) Start(c *fiber.Ctx) error {
	result, err := h.generation.StartGeneration(c.Context())
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}
	return response.Accepted(c, result)
}

// PollNow handles POST /api/generation/poll
func (h *GenerationHandler) PollNow(c *fiber.Ctx) error {
	result, err := h.generation.PollNow(c.Context())
	if err != nil {
		return response.UpstreamError(c, err.Error())
	}
	return response.OK(c, result)
}

// List handles GET /api/generation
func (h *GenerationHandler) List(c *fiber.Ctx) error {
	gens, err := h.generation.ListGenerations(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, gens)
}

// Get handles GET /api/generation/:sunoId
func (h *GenerationHandler) Get(c *fiber.Ctx) error {
	sunoID := c.Params("sunoId")
	if sunoID == "" {
		return response.ValidationError(c, "Clip ID is required", nil)
	}

	gen, err := h.generation.GetGeneration(c.Context(), sunoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Generation not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, gen)
}

// Download handles POST /api/download/:sunoId
func (h *GenerationHandler) Download(c *fiber.Ctx) error {
	sunoID := c.Params("sunoId")
	if sunoID == "" {
		return response.ValidationError(c, "Clip ID is required", nil)
	}

	if err := h.download.EnqueueDownload(c.Context(), sunoID); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, fiber.Map{"sunoId": sunoID, "queued": true})
}

// Redownload handles POST /api/download/:sunoId/redownload. An
// optional body {"format": "wav"} overrides the download_format
// setting for this clip.
func (h *GenerationHandler) Redownload(c *fiber.Ctx) error {
	sunoID := c.Params("sunoId")
	if sunoID == "" {
		return response.ValidationError(c, "Clip ID is required", nil)
	}

	var req struct {
		Format string `json:"format"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
	}

	if err := h.download.Redownload(c.Context(), sunoID, req.Format); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Generation not found")
		}
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.Accepted(c, fiber.Map{"sunoId": sunoID, "queued": true})
}

// DownloadCompleted handles POST /api/download/completed
func (h *GenerationHandler) DownloadCompleted(c *fiber.Ctx) error {
	queued, err := h.download.DownloadCompleted(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Accepted(c, fiber.Map{"queued": queued})
}

// ImportHistory handles POST /api/download/history
func (h *GenerationHandler) ImportHistory(c *fiber.Ctx) error {
	page := 0
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return response.ValidationError(c, "Invalid page number", nil)
		}
		page = n
	}

	imported, err := h.download.ImportFromHistory(c.Context(), page)
	if err != nil {
		return response.UpstreamError(c, err.Error())
	}

	return response.Accepted(c, fiber.Map{"page": page, "imported": imported})
}
