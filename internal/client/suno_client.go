package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serkansmg/SunoApiManager/internal/config"
	"github.com/serkansmg/SunoApiManager/internal/model"
)

// SunoAPI defines the interface for the Suno operations the workers need.
type SunoAPI interface {
	CustomGenerate(ctx context.Context, req *model.CustomGenerateRequest) ([]model.AudioInfo, error)
	GetAudioInfo(ctx context.Context, ids []string) ([]model.AudioInfo, error)
	GetClip(ctx context.Context, clipID string) (map[string]interface{}, error)
	DownloadFile(ctx context.Context, url, destPath string, onProgress ProgressFunc) error
	DownloadWAV(ctx context.Context, clipID, destPath string, onProgress ProgressFunc) error
}

// ProgressFunc receives fractional progress in 0.0-1.0, or
// model.IndeterminateProgress when the total size is unknown.
type ProgressFunc func(progress float64, message string)

const (
	// Suno session JWTs live ~60s server-side; refresh below that.
	tokenTTL       = 50 * time.Second
	clerkJSVersion = "5.15.0"
	maxErrorBody   = 300
)

// userAgents is rotated per client instance so restarts don't pin one
// browser fingerprint.
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// SunoClient talks to the Suno studio API using a browser session
// cookie. Session tokens are refreshed silently before they expire;
// callers never see auth churn.
type SunoClient struct {
	httpClient   *http.Client
	dlClient     *http.Client
	baseURL      string
	clerkURL     string
	userAgent    string
	deviceID     string
	defaultModel string
	solver       *CaptchaSolver

	mu          sync.Mutex
	cookies     map[string]string
	sid         string
	token       string
	tokenAt     time.Time
	initialized bool
}

// noContentBody is returned for 204 responses so callers can always
// unmarshal something.
var noContentBody = []byte(`{"status":204,"message":"No content"}`)

// NewSunoClient creates a client from the configured browser cookie.
// The cookie string must carry a Clerk __client token.
func NewSunoClient(cfg *config.SunoConfig) (*SunoClient, error) {
	cookies := parseCookieString(cfg.Cookie)
	if cookies["__client"] == "" {
		return nil, fmt.Errorf("suno cookie is missing the __client token")
	}

	return &SunoClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dlClient: &http.Client{
			Timeout: 300 * time.Second,
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clerkURL:     strings.TrimRight(cfg.ClerkURL, "/"),
		userAgent:    userAgents[int(time.Now().UnixNano())%len(userAgents)],
		deviceID:     uuid.NewString(),
		defaultModel: cfg.DefaultModel,
		cookies:      cookies,
	}, nil
}

// SetCaptchaSolver wires the challenge coordinator used by the
// generation endpoints. Without one, submissions go out tokenless.
func (c *SunoClient) SetCaptchaSolver(solver *CaptchaSolver) {
	c.solver = solver
}

// parseCookieString splits a raw browser Cookie header into a name map.
func parseCookieString(raw string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return cookies
}

// IsInitialized reports whether a session has been established.
func (c *SunoClient) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// requestOptions tunes a single API call.
type requestOptions struct {
	baseURL string        // overrides the studio base URL
	body    interface{}   // JSON-encoded when non-nil
	timeout time.Duration // overrides the default client timeout
	noRetry bool          // disables the single auth retry
}

// request executes an authenticated API call. The session token is
// refreshed first if stale, response cookies are merged back into the
// jar, and a 401/403/422 triggers exactly one refresh-and-retry.
func (c *SunoClient) request(ctx context.Context, method, path string, opts requestOptions) ([]byte, error) {
	if !c.IsInitialized() {
		if err := c.Init(ctx); err != nil {
			return nil, err
		}
	}
	if err := c.ensureFreshToken(ctx); err != nil {
		return nil, err
	}

	body, status, err := c.do(ctx, method, path, opts)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusUnprocessableEntity {
		if !opts.noRetry {
			log.Printf("[Suno API] %d on %s %s, refreshing token and retrying once", status, method, path)
			if err := c.forceRefreshToken(ctx); err != nil {
				return nil, err
			}
			opts.noRetry = true
			return c.request(ctx, method, path, opts)
		}
	}

	switch {
	case status == http.StatusNoContent:
		return noContentBody, nil
	case status == http.StatusOK || status == http.StatusCreated:
		return body, nil
	default:
		return nil, &APIError{Status: status, Body: truncate(string(body), maxErrorBody)}
	}
}

// do performs one HTTP round trip with the session headers attached.
func (c *SunoClient) do(ctx context.Context, method, path string, opts requestOptions) ([]byte, int, error) {
	base := c.baseURL
	if opts.baseURL != "" {
		base = strings.TrimRight(opts.baseURL, "/")
	}

	var reqBody io.Reader
	if opts.body != nil {
		encoded, err := json.Marshal(opts.body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	log.Printf("[Suno API] → %s %s", method, req.URL.String())

	client := c.httpClient
	if opts.timeout > 0 {
		client = &http.Client{Timeout: opts.timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("[Suno API] ✗ %s %s failed: %v", method, req.URL.String(), err)
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	c.mergeCookies(resp)

	log.Printf("[Suno API] ← %d %s %s", resp.StatusCode, method, req.URL.String())
	return respBody, resp.StatusCode, nil
}

// setHeaders attaches the browser-session headers to a studio request.
func (c *SunoClient) setHeaders(req *http.Request) {
	c.mu.Lock()
	token := c.token
	cookie := c.cookieHeader()
	c.mu.Unlock()

	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Device-Id", fmt.Sprintf("%q", c.deviceID))
	req.Header.Set("x-suno-client", "Android prerelease-1.0.42")
	req.Header.Set("Cookie", cookie)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// cookieHeader serializes the jar. Caller holds c.mu.
func (c *SunoClient) cookieHeader() string {
	pairs := make([]string, 0, len(c.cookies))
	for name, value := range c.cookies {
		pairs = append(pairs, name+"="+value)
	}
	return strings.Join(pairs, "; ")
}

// mergeCookies folds Set-Cookie values from a response into the jar so
// rotated session cookies survive.
func (c *SunoClient) mergeCookies(resp *http.Response) {
	updates := resp.Cookies()
	if len(updates) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ck := range updates {
		if ck.Value != "" {
			c.cookies[ck.Name] = ck.Value
		}
	}
}

// getJSON runs a GET and unmarshals the response into result.
func (c *SunoClient) getJSON(ctx context.Context, path string, result interface{}) error {
	body, err := c.request(ctx, http.MethodGet, path, requestOptions{})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// postJSON runs a POST and unmarshals the response into result. A nil
// result discards the body.
func (c *SunoClient) postJSON(ctx context.Context, path string, payload, result interface{}) error {
	body, err := c.request(ctx, http.MethodPost, path, requestOptions{body: payload})
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
