package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/internal/service"
	"github.com/serkansmg/SunoApiManager/internal/store"
	"github.com/serkansmg/SunoApiManager/pkg/response"
)

type SongHandler struct {
	service   *service.SongService
	validator *validator.Validate
}

func NewSongHandler(svc *service.SongService, v *validator.Validate) *SongHandler {
	return &SongHandler{
		service:   svc,
		validator: v,
	}
}

// Save handles POST /api/songs
func (h *SongHandler) Save(c *fiber.Ctx) error {
	var req model.SaveSongsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.SaveSongs(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// List handles GET /api/songs
func (h *SongHandler) List(c *fiber.Ctx) error {
	songs, err := h.service.ListSongs(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, songs)
}

// Get handles GET /api/songs/:id
func (h *SongHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Song ID is required", nil)
	}

	detail, err := h.service.GetSong(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, detail)
}

// Delete handles DELETE /api/songs/:id
func (h *SongHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Song ID is required", nil)
	}

	if err := h.service.DeleteSong(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

// Retry handles POST /api/songs/:id/retry
func (h *SongHandler) Retry(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Song ID is required", nil)
	}

	song, err := h.service.RetrySong(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.OK(c, song)
}

// RetryAllFailed handles POST /api/songs/retry-failed
func (h *SongHandler) RetryAllFailed(c *fiber.Ctx) error {
	reset, err := h.service.RetryAllFailed(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, fiber.Map{"reset": reset})
}

// Stats handles GET /api/songs/stats
func (h *SongHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, stats)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
