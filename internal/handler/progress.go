package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/internal/progress"
	"github.com/serkansmg/SunoApiManager/pkg/response"
)

const (
	streamPollInterval = 500 * time.Millisecond
	streamStallTimeout = 60 * time.Second
)

// ProgressHandler exposes the download pipeline state, either as a
// point-in-time read or as a server-sent event stream.
type ProgressHandler struct {
	tracker *progress.Tracker
}

func NewProgressHandler(tracker *progress.Tracker) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

// Snapshot handles GET /api/progress
func (h *ProgressHandler) Snapshot(c *fiber.Ctx) error {
	return response.OK(c, h.tracker.Snapshot())
}

// Get handles GET /api/progress/:sunoId
func (h *ProgressHandler) Get(c *fiber.Ctx) error {
	sunoID := c.Params("sunoId")
	event, ok := h.tracker.Get(sunoID)
	if !ok {
		return response.NotFound(c, "No progress for this clip")
	}
	return response.OK(c, event)
}

// Stream handles GET /api/progress/:sunoId/stream as SSE. The stream
// pushes every state change, closes after a terminal event, and gives
// up when nothing changes within the stall window.
func (h *ProgressHandler) Stream(c *fiber.Ctx) error {
	sunoID := c.Params("sunoId")
	if sunoID == "" {
		return response.ValidationError(c, "Clip ID is required", nil)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		var last model.ProgressEvent
		seen := false
		lastChange := time.Now()

		for {
			event, ok := h.tracker.Get(sunoID)
			if ok && (!seen || event != last) {
				if err := writeSSE(w, event); err != nil {
					return
				}
				last = event
				seen = true
				lastChange = time.Now()

				if event.Terminal() {
					return
				}
			}

			if time.Since(lastChange) > streamStallTimeout {
				return
			}
			time.Sleep(streamPollInterval)
		}
	}))

	return nil
}

func writeSSE(w *bufio.Writer, event model.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}
