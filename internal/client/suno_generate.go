package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/serkansmg/SunoApiManager/internal/model"
)

const (
	lyricsPollAttempts = 30
	lyricsPollInterval = 2 * time.Second
)

// Generate submits a simple-mode generation: Suno writes lyrics from a
// natural-language description.
func (c *SunoClient) Generate(ctx context.Context, req *model.GenerateRequest) ([]model.AudioInfo, error) {
	payload := map[string]interface{}{
		"gpt_description_prompt": req.Prompt,
		"prompt":                 "",
		"generation_type":        "TEXT",
		"make_instrumental":      req.MakeInstrumental,
		"mv":                     c.modelOrDefault(req.Model),
	}
	return c.submitGeneration(ctx, "/api/generate/v2/", payload)
}

// CustomGenerate submits a custom-mode generation with full lyrics,
// style tags and a title.
func (c *SunoClient) CustomGenerate(ctx context.Context, req *model.CustomGenerateRequest) ([]model.AudioInfo, error) {
	payload := map[string]interface{}{
		"prompt":            req.Prompt,
		"tags":              req.Tags,
		"title":             req.Title,
		"negative_tags":     req.NegativeTags,
		"generation_type":   "TEXT",
		"make_instrumental": req.MakeInstrumental,
		"mv":                c.modelOrDefault(req.Model),
	}
	return c.submitGeneration(ctx, "/api/generate/v2/", payload)
}

// ExtendAudio continues an existing clip from a timestamp.
func (c *SunoClient) ExtendAudio(ctx context.Context, req *model.ExtendAudioRequest) ([]model.AudioInfo, error) {
	payload := map[string]interface{}{
		"continue_clip_id": req.AudioID,
		"continue_at":      req.ContinueAt,
		"task":             "extend",
		"prompt":           req.Prompt,
		"tags":             req.Tags,
		"negative_tags":    req.NegativeTags,
		"title":            req.Title,
		"generation_type":  "TEXT",
		"mv":               c.modelOrDefault(req.Model),
	}
	return c.submitGeneration(ctx, "/api/generate/v2/", payload)
}

// Concatenate stitches an extension chain into one full-length clip.
func (c *SunoClient) Concatenate(ctx context.Context, clipID string) (*model.AudioInfo, error) {
	body, err := c.request(ctx, http.MethodPost, "/api/generate/concat/v2/", requestOptions{
		body: map[string]interface{}{"clip_id": clipID},
	})
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	info := mapClip(raw)
	return &info, nil
}

// GenerateLyrics asks Suno to write lyrics for a prompt and polls until
// they are ready.
func (c *SunoClient) GenerateLyrics(ctx context.Context, prompt string) (*model.LyricsResponse, error) {
	var created struct {
		ID string `json:"id"`
	}
	err := c.postJSON(ctx, "/api/generate/lyrics/", map[string]interface{}{"prompt": prompt}, &created)
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("lyrics generation returned no id")
	}

	for attempt := 1; attempt <= lyricsPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lyricsPollInterval):
		}

		var result model.LyricsResponse
		if err := c.getJSON(ctx, "/api/generate/lyrics/"+created.ID, &result); err != nil {
			log.Printf("[Suno API] Poll lyrics #%d (id=%s) error: %v", attempt, created.ID, err)
			continue
		}
		if result.Status == "complete" {
			result.ID = created.ID
			return &result, nil
		}
	}

	return nil, fmt.Errorf("lyrics generation timed out (id=%s)", created.ID)
}

// submitGeneration attaches a challenge token and posts the payload.
// A 422 token rejection invalidates the cached token and retries once
// with a forced re-solve.
func (c *SunoClient) submitGeneration(ctx context.Context, path string, payload map[string]interface{}) ([]model.AudioInfo, error) {
	token, err := c.captchaToken(ctx, false)
	if err != nil {
		return nil, err
	}
	payload["token"] = token

	clips, err := c.postGeneration(ctx, path, payload)
	if err == nil || !IsTokenRejectionError(err) {
		return clips, err
	}

	log.Printf("[Suno API] challenge token rejected, re-solving and retrying")
	if c.solver != nil {
		c.solver.Invalidate()
	}
	token, err = c.captchaToken(ctx, true)
	if err != nil {
		return nil, err
	}
	payload["token"] = token
	return c.postGeneration(ctx, path, payload)
}

// postGeneration posts a generation payload and maps the clips.
func (c *SunoClient) postGeneration(ctx context.Context, path string, payload map[string]interface{}) ([]model.AudioInfo, error) {
	body, err := c.request(ctx, http.MethodPost, path, requestOptions{body: payload})
	if err != nil {
		return nil, err
	}

	var result struct {
		ID    string                   `json:"id"`
		Clips []map[string]interface{} `json:"clips"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	clips := make([]model.AudioInfo, 0, len(result.Clips))
	for _, raw := range result.Clips {
		clips = append(clips, mapClip(raw))
	}
	return clips, nil
}

// captchaToken obtains a challenge token through the solver. A missing
// solver degrades to tokenless submissions.
func (c *SunoClient) captchaToken(ctx context.Context, force bool) (string, error) {
	if c.solver == nil {
		return "", nil
	}
	token, err := c.solver.GetToken(ctx, force)
	if err != nil {
		return "", &ChallengeError{Reason: err.Error()}
	}
	return token, nil
}

func (c *SunoClient) modelOrDefault(mv string) string {
	if mv != "" {
		return mv
	}
	if c.defaultModel != "" {
		return c.defaultModel
	}
	return "chirp-v3-5"
}
