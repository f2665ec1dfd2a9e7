package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/serkansmg/SunoApiManager/internal/client"
	"github.com/serkansmg/SunoApiManager/pkg/response"
)

// CaptchaHandler exposes the challenge-token coordinator so operators
// can pre-solve a token before a large batch run.
type CaptchaHandler struct {
	solver *client.CaptchaSolver
}

func NewCaptchaHandler(solver *client.CaptchaSolver) *CaptchaHandler {
	return &CaptchaHandler{solver: solver}
}

// Status handles GET /api/captcha/status
func (h *CaptchaHandler) Status(c *fiber.Ctx) error {
	if h.solver == nil {
		return response.OK(c, fiber.Map{"configured": false})
	}

	status := h.solver.Status()
	status["configured"] = true
	return response.OK(c, status)
}

// Solve handles POST /api/captcha/solve. With ?force=true the cached
// token is bypassed. Blocks until the solver finishes or times out.
func (h *CaptchaHandler) Solve(c *fiber.Ctx) error {
	if h.solver == nil {
		return response.ServiceError(c, "captcha solver not configured")
	}

	force := c.QueryBool("force")
	token, err := h.solver.GetToken(c.Context(), force)
	if err != nil {
		return response.UpstreamError(c, err.Error())
	}

	return response.OK(c, fiber.Map{
		"solved":   token != "",
		"required": token != "",
	})
}

// Invalidate handles POST /api/captcha/invalidate
func (h *CaptchaHandler) Invalidate(c *fiber.Ctx) error {
	if h.solver == nil {
		return response.ServiceError(c, "captcha solver not configured")
	}

	h.solver.Invalidate()
	return response.OK(c, fiber.Map{"invalidated": true})
}
