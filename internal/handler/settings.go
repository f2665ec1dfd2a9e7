package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/serkansmg/SunoApiManager/internal/service"
	"github.com/serkansmg/SunoApiManager/internal/store"
	"github.com/serkansmg/SunoApiManager/pkg/response"
)

type SettingsHandler struct {
	service   *service.SettingsService
	validator *validator.Validate
}

func NewSettingsHandler(svc *service.SettingsService, v *validator.Validate) *SettingsHandler {
	return &SettingsHandler{
		service:   svc,
		validator: v,
	}
}

type updateSettingRequest struct {
	Value string `json:"value" validate:"required"`
}

// All handles GET /api/settings
func (h *SettingsHandler) All(c *fiber.Ctx) error {
	settings, err := h.service.All(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, settings)
}

// Get handles GET /api/settings/:key
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	key := c.Params("key")

	value, err := h.service.Get(c.Context(), key)
	if err != nil {
		if err == store.ErrNotFound {
			return response.NotFound(c, "Setting not set")
		}
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.OK(c, fiber.Map{"key": key, "value": value})
}

// Set handles PUT /api/settings/:key
func (h *SettingsHandler) Set(c *fiber.Ctx) error {
	key := c.Params("key")

	var req updateSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.service.Set(c.Context(), key, req.Value); err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.OK(c, fiber.Map{"key": key, "value": req.Value})
}
