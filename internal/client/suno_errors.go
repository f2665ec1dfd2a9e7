package client

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotInitialized is returned when the client is used before Init.
var ErrNotInitialized = errors.New("suno client not initialized, call Init first")

// ErrNotFound is returned when a referenced clip does not exist remotely.
var ErrNotFound = errors.New("clip not found")

// ErrConversionTimeout is returned when WAV conversion does not produce
// a URL within the polling window.
var ErrConversionTimeout = errors.New("wav conversion timed out")

// AuthError wraps a failure in the Clerk session/token exchange.
type AuthError struct {
	Op  string // "session" or "refresh"
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("clerk %s failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError is a non-2xx response from the Suno API. Body is truncated
// for diagnostics.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("suno API error (%d): %s", e.Status, e.Body)
}

// IsRateLimit reports whether the response looks like rate limiting.
func (e *APIError) IsRateLimit() bool {
	return e.Status == 429 || strings.Contains(strings.ToLower(e.Body), "rate")
}

// IsTokenRejection reports a 422 caused by an invalid or expired
// challenge token.
func (e *APIError) IsTokenRejection() bool {
	return e.Status == 422 && strings.Contains(strings.ToLower(e.Body), "token")
}

// ChallengeError means a challenge token could not be acquired. The
// submission fails but the caller may retry the whole run.
type ChallengeError struct {
	Reason string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("captcha token acquisition failed: %s", e.Reason)
}

// DownloadError is a transport or storage failure while fetching a file.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed (%s): %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// IsRateLimitError reports whether err (possibly wrapped) indicates
// rate limiting. Also matches plain error strings, since scheduler
// errors are persisted as text and re-inspected.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRateLimit()
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate")
}

// IsTokenRejectionError reports whether err is a 422 challenge-token
// rejection that warrants a forced re-solve.
func IsTokenRejectionError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsTokenRejection()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
