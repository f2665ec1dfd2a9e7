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
	wavPollAttempts = 30
	wavPollInterval = 2 * time.Second
)

// ConvertWAV asks Suno to render a clip's WAV file. Conversion is
// asynchronous; poll GetWavURL for the result.
func (c *SunoClient) ConvertWAV(ctx context.Context, clipID string) error {
	_, err := c.request(ctx, http.MethodPost, fmt.Sprintf("/api/gen/%s/convert_wav/", clipID), requestOptions{
		body: map[string]interface{}{},
	})
	return err
}

// GetWavURL returns the CDN URL of a converted WAV, or empty while the
// conversion is still running.
func (c *SunoClient) GetWavURL(ctx context.Context, clipID string) (string, error) {
	body, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/api/gen/%s/wav_file/", clipID), requestOptions{})
	if err != nil {
		return "", err
	}

	var result model.WavURLResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return result.WavFileURL, nil
}

// DownloadWAV converts a clip to WAV, waits for the rendered file and
// streams it to destPath. Returns ErrConversionTimeout if no URL shows
// up within the polling window.
func (c *SunoClient) DownloadWAV(ctx context.Context, clipID, destPath string, onProgress ProgressFunc) error {
	if onProgress != nil {
		onProgress(model.IndeterminateProgress, "requesting wav conversion")
	}
	if err := c.ConvertWAV(ctx, clipID); err != nil {
		return fmt.Errorf("wav conversion request failed: %w", err)
	}

	wavURL := ""
	for attempt := 1; attempt <= wavPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wavPollInterval):
		}

		url, err := c.GetWavURL(ctx, clipID)
		if err != nil {
			log.Printf("[Suno API] Poll wav #%d (clip=%s) error: %v", attempt, clipID, err)
			continue
		}
		if url != "" {
			wavURL = url
			break
		}
	}
	if wavURL == "" {
		return ErrConversionTimeout
	}

	return c.DownloadFile(ctx, wavURL, destPath, onProgress)
}
