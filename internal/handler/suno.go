package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/serkansmg/SunoApiManager/internal/client"
	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/pkg/response"
)

// SunoHandler proxies the remote Suno API for ad-hoc use outside the
// batch pipeline.
type SunoHandler struct {
	suno      *client.SunoClient
	validator *validator.Validate
}

func NewSunoHandler(suno *client.SunoClient, v *validator.Validate) *SunoHandler {
	return &SunoHandler{
		suno:      suno,
		validator: v,
	}
}

// Generate handles POST /api/suno/generate
func (h *SunoHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	clips, err := h.suno.Generate(c.Context(), &req)
	if err != nil {
		return upstreamFailure(c, err)
	}
	return response.OK(c, clips)
}

// CustomGenerate handles POST /api/suno/custom_generate
func (h *SunoHandler) CustomGenerate(c *fiber.Ctx) error {
	var req model.CustomGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	clips, err := h.suno.CustomGenerate(c.Context(), &req)
	if err != nil {
		return upstreamFailure(c, err)
	}
	return response.OK(c, clips)
}

// Extend handles POST /api/suno/extend
func (h *SunoHandler) Extend(c *fiber.Ctx) error {
	var req model.ExtendAudioRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	clips, err := h.suno.ExtendAudio(c.Context(), &req)
	if err != nil {
		return upstreamFailure(c, err)
	}
	return response.OK(c, clips)
}

// Concat handles POST /api/suno/concat
func (h *SunoHandler) Concat(c *fiber.Ctx) error {
	var req model.ConcatRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	clip, err := h.suno.Concatenate(c.Context(), req.ClipID)
	if err != nil {
		return upstreamFailure(c, err)
	}
	return response.OK(c, clip)
}

// Lyrics handles POST /api/suno/lyrics
func (h *SunoHandler) Lyrics(c *fiber.Ctx) error {
	var req model.LyricsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	lyrics, err := h.suno.GenerateLyrics(c.Context(), req.Prompt)
	if err != nil {
		return upstreamFailure(c, err)
	}
	return response.OK(c, lyrics)
}

// Feed handles GET /api/suno/feed. With ?ids=a,b,c specific clips are
// fetched; otherwise one page of the library.
func (h *SunoHandler) Feed(c *fiber.Ctx) error {
	if raw := c.Query("ids"); raw != "" {
		clips, err := h.suno.GetAudioInfo(c.Context(), strings.Split(raw, ","))
		if err != nil {
			return upstreamFailure(c, err)
		}
		return response.OK(c, clips)
	}

	page := 0
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return response.ValidationError(c, "Invalid page number", nil)
		}
		page = n
	}

	feed, err := h.suno.GetFeedPage(c.Context(), page)
	if err != nil {
		return upstreamFailure(c, err)
	}
	return response.OK(c, feed)
}

// Clip handles GET /api/suno/clip/:clipId
func (h *SunoHandler) Clip(c *fiber.Ctx) error {
	clipID := c.Params("clipId")
	if clipID == "" {
		return response.ValidationError(c, "Clip ID is required", nil)
	}

	clip, err := h.suno.GetClip(c.Context(), clipID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return response.NotFound(c, "Clip not found")
		}
		return upstreamFailure(c, err)
	}
	return response.OK(c, clip)
}

// Credits handles GET /api/suno/credits
func (h *SunoHandler) Credits(c *fiber.Ctx) error {
	credits, err := h.suno.GetCredits(c.Context())
	if err != nil {
		return upstreamFailure(c, err)
	}
	return response.OK(c, credits)
}

// Billing handles GET /api/suno/billing
func (h *SunoHandler) Billing(c *fiber.Ctx) error {
	info, err := h.suno.GetBillingInfo(c.Context())
	if err != nil {
		return upstreamFailure(c, err)
	}
	return response.OK(c, info)
}

// Models handles GET /api/suno/models
func (h *SunoHandler) Models(c *fiber.Ctx) error {
	models, err := h.suno.GetModels(c.Context())
	if err != nil {
		return upstreamFailure(c, err)
	}
	return response.OK(c, models)
}

// ConvertWAV handles POST /api/suno/wav/:clipId/convert
func (h *SunoHandler) ConvertWAV(c *fiber.Ctx) error {
	clipID := c.Params("clipId")
	if clipID == "" {
		return response.ValidationError(c, "Clip ID is required", nil)
	}

	if err := h.suno.ConvertWAV(c.Context(), clipID); err != nil {
		return upstreamFailure(c, err)
	}
	return response.Accepted(c, fiber.Map{"clipId": clipID, "converting": true})
}

// WavURL handles GET /api/suno/wav/:clipId
func (h *SunoHandler) WavURL(c *fiber.Ctx) error {
	clipID := c.Params("clipId")
	if clipID == "" {
		return response.ValidationError(c, "Clip ID is required", nil)
	}

	wavURL, err := h.suno.GetWavURL(c.Context(), clipID)
	if err != nil {
		return upstreamFailure(c, err)
	}
	return response.OK(c, model.WavURLResponse{WavFileURL: wavURL})
}

// upstreamFailure maps client errors onto HTTP responses. Remote rate
// limits are surfaced as 429 so callers can back off.
func upstreamFailure(c *fiber.Ctx, err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsRateLimit() {
			return response.RateLimited(c)
		}
		return response.UpstreamError(c, apiErr.Error())
	}
	return response.ServiceError(c, err.Error())
}
