package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Init exchanges the __client cookie for an active Clerk session and
// a first API token. Safe to call more than once.
func (c *SunoClient) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	sid, err := c.fetchSessionID(ctx)
	if err != nil {
		return &AuthError{Op: "session", Err: err}
	}
	c.sid = sid

	if err := c.refreshTokenLocked(ctx); err != nil {
		return err
	}

	c.initialized = true
	log.Printf("[Suno Auth] session established (sid=%s)", sid)
	return nil
}

// ensureFreshToken refreshes the session token when it is older than
// the TTL. Serialized under the credential lock; a redundant refresh
// from a racing caller is harmless.
func (c *SunoClient) ensureFreshToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Since(c.tokenAt) < tokenTTL {
		return nil
	}
	return c.refreshTokenLocked(ctx)
}

// forceRefreshToken discards the current token regardless of age.
func (c *SunoClient) forceRefreshToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshTokenLocked(ctx)
}

// fetchSessionID asks Clerk which session the __client cookie belongs
// to. Caller holds c.mu.
func (c *SunoClient) fetchSessionID(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/v1/client?_is_native=true&_clerk_js_version=%s", c.clerkURL, clerkJSVersion)

	var payload struct {
		Response struct {
			LastActiveSessionID string `json:"last_active_session_id"`
			Sessions            []struct {
				ID string `json:"id"`
			} `json:"sessions"`
		} `json:"response"`
	}
	if err := c.clerkCall(ctx, http.MethodGet, url, &payload); err != nil {
		return "", err
	}

	sid := payload.Response.LastActiveSessionID
	if sid == "" && len(payload.Response.Sessions) > 0 {
		sid = payload.Response.Sessions[0].ID
	}
	if sid == "" {
		return "", fmt.Errorf("no active session for the provided cookie")
	}
	return sid, nil
}

// refreshTokenLocked mints a fresh short-lived API token for the
// session. Caller holds c.mu.
func (c *SunoClient) refreshTokenLocked(ctx context.Context) error {
	if c.sid == "" {
		return &AuthError{Op: "refresh", Err: fmt.Errorf("no session id")}
	}

	url := fmt.Sprintf("%s/v1/client/sessions/%s/tokens?_is_native=true&_clerk_js_version=%s", c.clerkURL, c.sid, clerkJSVersion)

	var payload struct {
		JWT string `json:"jwt"`
	}
	if err := c.clerkCall(ctx, http.MethodPost, url, &payload); err != nil {
		return &AuthError{Op: "refresh", Err: err}
	}
	if payload.JWT == "" {
		return &AuthError{Op: "refresh", Err: fmt.Errorf("empty jwt in token response")}
	}

	c.token = payload.JWT
	c.tokenAt = time.Now()
	log.Printf("[Suno Auth] token refreshed")
	return nil
}

// clerkCall performs one request against the Clerk frontend API. The
// raw __client value goes in the Authorization header; the cookie jar
// rides along and absorbs any rotations. Caller holds c.mu.
func (c *SunoClient) clerkCall(ctx context.Context, method, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", c.cookies["__client"])
	req.Header.Set("Cookie", c.cookieHeader())
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	for _, ck := range resp.Cookies() {
		if ck.Value != "" {
			c.cookies[ck.Name] = ck.Value
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("clerk returned %d: %s", resp.StatusCode, truncate(string(body), maxErrorBody))
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
