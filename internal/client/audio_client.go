package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/serkansmg/SunoApiManager/internal/config"
	"github.com/serkansmg/SunoApiManager/internal/model"
)

// SilenceAnalyzer defines the interface for audio silence analysis.
type SilenceAnalyzer interface {
	Analyze(ctx context.Context, filePath string, thresholdDB, minLengthMS int) (*model.SilenceAnalysis, error)
}

// AnalyzerClient implements SilenceAnalyzer for the analysis
// microservice. The service shares the download volume, so files are
// referenced by path.
type AnalyzerClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewAnalyzerClient creates a new silence analysis client.
func NewAnalyzerClient(cfg *config.AnalyzerConfig) *AnalyzerClient {
	return &AnalyzerClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// Analyze scans an audio file for silent gaps.
func (c *AnalyzerClient) Analyze(ctx context.Context, filePath string, thresholdDB, minLengthMS int) (*model.SilenceAnalysis, error) {
	payload := map[string]interface{}{
		"file_path":       filePath,
		"silence_thresh":  thresholdDB,
		"min_silence_len": minLengthMS,
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analyzer error (status %d): %s", resp.StatusCode, truncate(string(respBody), maxErrorBody))
	}

	var result model.SilenceAnalysis
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("analysis failed: %s", result.Error)
	}
	return &result, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *AnalyzerClient) IsConfigured() bool {
	return c.baseURL != ""
}

// HealthCheck checks if the analyzer service is available
func (c *AnalyzerClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analyzer service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
