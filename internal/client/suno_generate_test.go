package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serkansmg/SunoApiManager/internal/model"
)

func newCustomRequest() *model.CustomGenerateRequest {
	return &model.CustomGenerateRequest{
		Prompt: "[Verse]\nTest lyrics",
		Tags:   "rock",
		Title:  "Test Song",
	}
}

type countingProvider struct {
	calls atomic.Int64
}

func (p *countingProvider) Solve(ctx context.Context) (string, error) {
	n := p.calls.Add(1)
	return fmt.Sprintf("captcha_%d", n), nil
}

// alwaysRequired short-circuits the remote requirement check in tests.
type alwaysRequired struct{}

func (alwaysRequired) CheckCaptchaRequired(ctx context.Context) (bool, error) {
	return true, nil
}

func TestCustomGenerate_TokenRejectionResolvesAndRetries(t *testing.T) {
	clerk := newFakeClerk(t)

	// The first submission is rejected as a bad challenge token (both
	// the original call and the automatic auth retry see 422). The
	// forced re-solve then succeeds.
	var posts atomic.Int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if posts.Add(1) <= 2 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"detail":"captcha token invalid"}`)
			return
		}
		fmt.Fprint(w, `{"id":"batch-1","clips":[{"id":"clip-1","status":"submitted"},{"id":"clip-2","status":"submitted"}]}`)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, clerk.server.URL)
	provider := &countingProvider{}
	c.SetCaptchaSolver(NewCaptchaSolver(alwaysRequired{}, provider, time.Minute))

	clips, err := c.CustomGenerate(context.Background(), newCustomRequest())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(clips))
	}
	if got := provider.calls.Load(); got != 2 {
		t.Errorf("expected initial solve + forced re-solve, got %d", got)
	}
}

func TestCustomGenerate_SecondRejectionIsTerminal(t *testing.T) {
	clerk := newFakeClerk(t)

	var posts atomic.Int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail":"captcha token invalid"}`)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, clerk.server.URL)
	provider := &countingProvider{}
	c.SetCaptchaSolver(NewCaptchaSolver(alwaysRequired{}, provider, time.Minute))

	_, err := c.CustomGenerate(context.Background(), newCustomRequest())
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if !IsTokenRejectionError(err) {
		t.Errorf("expected token rejection error, got %v", err)
	}
	// One forced re-solve, then give up.
	if got := provider.calls.Load(); got != 2 {
		t.Errorf("expected exactly 2 solves, got %d", got)
	}
}

func TestCustomGenerate_NoSolverSubmitsTokenless(t *testing.T) {
	clerk := newFakeClerk(t)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"batch-1","clips":[{"id":"clip-1","status":"submitted"}]}`)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, clerk.server.URL)

	clips, err := c.CustomGenerate(context.Background(), newCustomRequest())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(clips) != 1 {
		t.Fatalf("expected 1 clip, got %d", len(clips))
	}
}
