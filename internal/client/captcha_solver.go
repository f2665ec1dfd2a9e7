package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/serkansmg/SunoApiManager/internal/config"
)

// Solved challenge tokens stay acceptable for about two minutes.
const captchaTokenTTL = 120 * time.Second

// TokenProvider defines the interface for obtaining a solved challenge
// token. Solving may involve a human and take minutes.
type TokenProvider interface {
	Solve(ctx context.Context) (string, error)
}

// RequiredChecker asks the API whether the next generation needs a
// solved challenge.
type RequiredChecker interface {
	CheckCaptchaRequired(ctx context.Context) (bool, error)
}

// CaptchaSolver coordinates challenge solving: it caches solved tokens,
// single-flights concurrent solve requests and invalidates on
// rejection. All generation paths funnel through it.
type CaptchaSolver struct {
	checker      RequiredChecker
	provider     TokenProvider
	solveTimeout time.Duration
	onUpdate     func(solving bool, message string)

	mu        sync.Mutex
	token     string
	tokenAt   time.Time
	inflight  chan struct{}
	lastToken string
	lastErr   error
}

// NewCaptchaSolver creates a coordinator around a checker and provider.
func NewCaptchaSolver(checker RequiredChecker, provider TokenProvider, solveTimeout time.Duration) *CaptchaSolver {
	if solveTimeout <= 0 {
		solveTimeout = 300 * time.Second
	}
	return &CaptchaSolver{
		checker:      checker,
		provider:     provider,
		solveTimeout: solveTimeout,
	}
}

// SetUpdateFunc registers a callback fired when solving starts and
// finishes, for pushing captcha_update events to observers.
func (s *CaptchaSolver) SetUpdateFunc(fn func(solving bool, message string)) {
	s.onUpdate = fn
}

// GetToken returns a challenge token for the next submission. A cached
// unexpired token is reused; otherwise the API is asked whether a token
// is even required, and if so exactly one solve runs while concurrent
// callers wait for its result. force skips the cache and the
// requirement check.
func (s *CaptchaSolver) GetToken(ctx context.Context, force bool) (string, error) {
	s.mu.Lock()
	if !force && s.token != "" && time.Since(s.tokenAt) < captchaTokenTTL {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}

	if s.inflight != nil {
		done := s.inflight
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-done:
		}
		s.mu.Lock()
		token, err := s.lastToken, s.lastErr
		s.mu.Unlock()
		return token, err
	}

	done := make(chan struct{})
	s.inflight = done
	s.mu.Unlock()

	token, err := s.solve(ctx, force)

	s.mu.Lock()
	s.lastToken, s.lastErr = token, err
	if err == nil && token != "" {
		s.token, s.tokenAt = token, time.Now()
	}
	s.inflight = nil
	close(done)
	s.mu.Unlock()

	return token, err
}

// solve runs one requirement check plus provider solve.
func (s *CaptchaSolver) solve(ctx context.Context, force bool) (string, error) {
	if !force && s.checker != nil {
		required, err := s.checker.CheckCaptchaRequired(ctx)
		if err != nil {
			// Assume a challenge is needed when the check itself fails.
			log.Printf("[Captcha] requirement check failed, assuming required: %v", err)
			required = true
		}
		if !required {
			return "", nil
		}
	}

	if s.provider == nil {
		return "", fmt.Errorf("no token provider configured")
	}

	s.notify(true, "solving captcha")
	sctx, cancel := context.WithTimeout(ctx, s.solveTimeout)
	defer cancel()

	token, err := s.provider.Solve(sctx)
	if err != nil {
		s.notify(false, "captcha solve failed")
		return "", fmt.Errorf("solve failed: %w", err)
	}
	s.notify(false, "captcha solved")
	return token, nil
}

func (s *CaptchaSolver) notify(solving bool, message string) {
	if s.onUpdate != nil {
		s.onUpdate(solving, message)
	}
}

// Invalidate drops the cached token, forcing the next GetToken to
// re-solve. Called after the API rejects a token.
func (s *CaptchaSolver) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.tokenAt = time.Time{}
}

// HasValidToken reports whether a cached unexpired token exists.
func (s *CaptchaSolver) HasValidToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && time.Since(s.tokenAt) < captchaTokenTTL
}

// IsSolving reports whether a solve is currently in flight.
func (s *CaptchaSolver) IsSolving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != nil
}

// Status summarizes the coordinator state for the dashboard.
func (s *CaptchaSolver) Status() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	valid := s.token != "" && time.Since(s.tokenAt) < captchaTokenTTL
	status := map[string]interface{}{
		"has_valid_token": valid,
		"solving":         s.inflight != nil,
	}
	if valid {
		status["token_age_seconds"] = int(time.Since(s.tokenAt).Seconds())
	}
	return status
}

// BrowserSolverClient implements TokenProvider against the external
// browser-automation solver service.
type BrowserSolverClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewBrowserSolverClient creates a client for the solver service.
func NewBrowserSolverClient(cfg *config.CaptchaConfig) *BrowserSolverClient {
	return &BrowserSolverClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.SolveTimeout) * time.Second,
		},
		baseURL: cfg.SolverURL,
	}
}

// Solve asks the solver service for a fresh challenge token. Blocks
// until the browser flow completes or the context expires.
func (c *BrowserSolverClient) Solve(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{"ctype": "generation"})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/solve", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("solver error (status %d): %s", resp.StatusCode, truncate(string(body), maxErrorBody))
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("solver returned an empty token")
	}
	return result.Token, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *BrowserSolverClient) IsConfigured() bool {
	return c.baseURL != ""
}

// HealthCheck checks if the solver service is available
func (c *BrowserSolverClient) HealthCheck(ctx context.Context) error {
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
		return fmt.Errorf("solver service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
