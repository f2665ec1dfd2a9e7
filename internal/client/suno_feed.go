package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/serkansmg/SunoApiManager/internal/model"
)

// GetAudioInfo fetches the current state of specific clips by id.
func (c *SunoClient) GetAudioInfo(ctx context.Context, ids []string) ([]model.AudioInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	page, err := c.fetchFeed(ctx, url.Values{"ids": {strings.Join(ids, ",")}})
	if err != nil {
		return nil, err
	}
	return page.Clips, nil
}

// GetFeedPage fetches one page of the account's clip library.
func (c *SunoClient) GetFeedPage(ctx context.Context, page int) (*model.FeedPage, error) {
	return c.fetchFeed(ctx, url.Values{"page": {fmt.Sprint(page)}})
}

func (c *SunoClient) fetchFeed(ctx context.Context, params url.Values) (*model.FeedPage, error) {
	body, err := c.request(ctx, http.MethodGet, "/api/feed/v2?"+params.Encode(), requestOptions{})
	if err != nil {
		return nil, err
	}

	var result struct {
		Clips       []map[string]interface{} `json:"clips"`
		NumTotal    int                      `json:"num_total_results"`
		CurrentPage int                      `json:"current_page"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	page := &model.FeedPage{
		Clips:       make([]model.AudioInfo, 0, len(result.Clips)),
		RawClips:    result.Clips,
		NumTotal:    result.NumTotal,
		CurrentPage: result.CurrentPage,
	}
	for _, raw := range result.Clips {
		page.Clips = append(page.Clips, mapClip(raw))
	}
	return page, nil
}

// GetClip fetches the full raw record for one clip, cover art and
// lyric metadata included.
func (c *SunoClient) GetClip(ctx context.Context, clipID string) (map[string]interface{}, error) {
	body, err := c.request(ctx, http.MethodGet, "/api/clip/"+clipID, requestOptions{})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return raw, nil
}

// GetCredits summarizes the account's remaining generation credits.
func (c *SunoClient) GetCredits(ctx context.Context) (*model.CreditsInfo, error) {
	var billing struct {
		TotalCreditsLeft int    `json:"total_credits_left"`
		Period           string `json:"period"`
		MonthlyLimit     int    `json:"monthly_limit"`
		MonthlyUsage     int    `json:"monthly_usage"`
	}
	if err := c.getJSON(ctx, "/api/billing/info/", &billing); err != nil {
		return nil, err
	}
	return &model.CreditsInfo{
		CreditsLeft:  billing.TotalCreditsLeft,
		Period:       billing.Period,
		MonthlyLimit: billing.MonthlyLimit,
		MonthlyUsage: billing.MonthlyUsage,
	}, nil
}

// GetBillingInfo returns the raw billing payload for the dashboard.
func (c *SunoClient) GetBillingInfo(ctx context.Context) (map[string]interface{}, error) {
	body, err := c.request(ctx, http.MethodGet, "/api/billing/info/", requestOptions{})
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return raw, nil
}

// GetModels lists the generation models available to the account,
// falling back to a static catalog when billing is unreachable.
func (c *SunoClient) GetModels(ctx context.Context) ([]model.SunoModel, error) {
	var billing struct {
		Models []model.SunoModel `json:"models"`
	}
	if err := c.getJSON(ctx, "/api/billing/info/", &billing); err != nil {
		return model.FallbackModels, nil
	}
	if len(billing.Models) == 0 {
		return model.FallbackModels, nil
	}
	return billing.Models, nil
}

// CheckCaptchaRequired asks whether the next generation needs a solved
// challenge. A failed check assumes one is required.
func (c *SunoClient) CheckCaptchaRequired(ctx context.Context) (bool, error) {
	body, err := c.request(ctx, http.MethodPost, "/api/c/check", requestOptions{
		body: map[string]interface{}{"ctype": "generation"},
	})
	if err != nil {
		return true, err
	}
	var result struct {
		Required bool `json:"required"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return true, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return result.Required, nil
}

// mapClip flattens a raw clip record into AudioInfo. Duration, tags
// and lyrics live under the nested metadata object.
func mapClip(raw map[string]interface{}) model.AudioInfo {
	meta, _ := raw["metadata"].(map[string]interface{})
	prompt := getString(meta, "prompt")

	return model.AudioInfo{
		ID:             getString(raw, "id"),
		Title:          getString(raw, "title"),
		ImageURL:       getString(raw, "image_url"),
		AudioURL:       getString(raw, "audio_url"),
		VideoURL:       getString(raw, "video_url"),
		Status:         getString(raw, "status"),
		Duration:       getFloat(meta, "duration"),
		ModelName:      getString(raw, "model_name"),
		Tags:           getString(meta, "tags"),
		Prompt:         prompt,
		GPTDescription: getString(meta, "gpt_description_prompt"),
		ErrorMessage:   getString(meta, "error_message"),
		CreatedAt:      getString(raw, "created_at"),
		Lyric:          parseLyrics(prompt),
	}
}

// parseLyrics normalizes a clip prompt into display lyrics: section
// markers survive, runs of blank lines collapse.
func parseLyrics(prompt string) string {
	if prompt == "" {
		return ""
	}
	lines := strings.Split(prompt, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func getString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func getFloat(m map[string]interface{}, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}
