package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/serkansmg/SunoApiManager/internal/config"
)

// fakeClerk serves the session discovery and token mint endpoints,
// counting token refreshes.
type fakeClerk struct {
	server     *httptest.Server
	tokenCount atomic.Int64
}

func newFakeClerk(t *testing.T) *fakeClerk {
	t.Helper()
	fc := &fakeClerk{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/client", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"response":{"last_active_session_id":"sess_test"}}`)
	})
	mux.HandleFunc("/v1/client/sessions/sess_test/tokens", func(w http.ResponseWriter, r *http.Request) {
		n := fc.tokenCount.Add(1)
		fmt.Fprintf(w, `{"jwt":"tok_%d"}`, n)
	})
	fc.server = httptest.NewServer(mux)
	t.Cleanup(fc.server.Close)
	return fc
}

func newTestClient(t *testing.T, apiURL, clerkURL string) *SunoClient {
	t.Helper()
	c, err := NewSunoClient(&config.SunoConfig{
		Cookie:       "__client=client-cookie-value; other=x",
		BaseURL:      apiURL,
		ClerkURL:     clerkURL,
		DefaultModel: "chirp-v3-5",
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestNewSunoClient_RequiresClientCookie(t *testing.T) {
	_, err := NewSunoClient(&config.SunoConfig{Cookie: "sid=abc; foo=bar"})
	if err == nil {
		t.Fatal("expected error for cookie without __client")
	}
}

func TestParseCookieString(t *testing.T) {
	cookies := parseCookieString("__client=abc; sid=123;empty ; k=v=w")
	if cookies["__client"] != "abc" {
		t.Errorf("expected __client=abc, got %q", cookies["__client"])
	}
	if cookies["sid"] != "123" {
		t.Errorf("expected sid=123, got %q", cookies["sid"])
	}
	if cookies["k"] != "v=w" {
		t.Errorf("expected k to keep embedded equals, got %q", cookies["k"])
	}
	if _, ok := cookies["empty"]; ok {
		t.Error("entries without '=' should be skipped")
	}
}

func TestInit_EstablishesSession(t *testing.T) {
	clerk := newFakeClerk(t)
	c := newTestClient(t, "http://unused", clerk.server.URL)

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !c.IsInitialized() {
		t.Error("client should report initialized")
	}
	if got := clerk.tokenCount.Load(); got != 1 {
		t.Errorf("expected 1 token mint, got %d", got)
	}

	// Second Init is a no-op.
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	if got := clerk.tokenCount.Load(); got != 1 {
		t.Errorf("expected still 1 token mint, got %d", got)
	}
}

func TestRequest_RetriesOnceOn401(t *testing.T) {
	clerk := newFakeClerk(t)

	var apiCalls atomic.Int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, clerk.server.URL)

	body, err := c.request(context.Background(), http.MethodGet, "/api/test", requestOptions{})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if !strings.Contains(string(body), `"ok":true`) {
		t.Errorf("unexpected body: %s", body)
	}
	if got := apiCalls.Load(); got != 2 {
		t.Errorf("expected 2 API calls (original + retry), got %d", got)
	}
	// One mint at init plus one forced refresh on the 401.
	if got := clerk.tokenCount.Load(); got != 2 {
		t.Errorf("expected 2 token mints, got %d", got)
	}
}

func TestRequest_FailsAfterSecondAuthError(t *testing.T) {
	clerk := newFakeClerk(t)

	var apiCalls atomic.Int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"detail":"nope"}`)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, clerk.server.URL)

	_, err := c.request(context.Background(), http.MethodGet, "/api/test", requestOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", apiErr.Status)
	}
	if got := apiCalls.Load(); got != 2 {
		t.Errorf("expected exactly 2 API calls, got %d", got)
	}
}

func TestRequest_NoContent(t *testing.T) {
	clerk := newFakeClerk(t)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, clerk.server.URL)

	body, err := c.request(context.Background(), http.MethodPost, "/api/test", requestOptions{})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var marker struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(body, &marker); err != nil {
		t.Fatalf("marker should be valid JSON: %v", err)
	}
	if marker.Status != 204 {
		t.Errorf("expected marker status 204, got %d", marker.Status)
	}
}

func TestRequest_ErrorBodyTruncated(t *testing.T) {
	clerk := newFakeClerk(t)
	longBody := strings.Repeat("x", 1000)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, longBody)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, clerk.server.URL)

	_, err := c.request(context.Background(), http.MethodGet, "/api/test", requestOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if len(apiErr.Body) != maxErrorBody {
		t.Errorf("expected body truncated to %d chars, got %d", maxErrorBody, len(apiErr.Body))
	}
}

func TestRequest_MergesResponseCookies(t *testing.T) {
	clerk := newFakeClerk(t)

	var seenCookie atomic.Value
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCookie.Store(r.Header.Get("Cookie"))
		http.SetCookie(w, &http.Cookie{Name: "__session", Value: "rotated"})
		fmt.Fprint(w, `{}`)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, clerk.server.URL)

	if _, err := c.request(context.Background(), http.MethodGet, "/api/one", requestOptions{}); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if _, err := c.request(context.Background(), http.MethodGet, "/api/two", requestOptions{}); err != nil {
		t.Fatalf("second request failed: %v", err)
	}

	got, _ := seenCookie.Load().(string)
	if !strings.Contains(got, "__session=rotated") {
		t.Errorf("second request should carry the rotated cookie, got %q", got)
	}
}

func TestRequest_SendsSessionHeaders(t *testing.T) {
	clerk := newFakeClerk(t)

	var auth, deviceID atomic.Value
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		deviceID.Store(r.Header.Get("Device-Id"))
		fmt.Fprint(w, `{}`)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, clerk.server.URL)

	if _, err := c.request(context.Background(), http.MethodGet, "/api/test", requestOptions{}); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	gotAuth, _ := auth.Load().(string)
	if gotAuth != "Bearer tok_1" {
		t.Errorf("expected Bearer tok_1, got %q", gotAuth)
	}
	gotDevice, _ := deviceID.Load().(string)
	if !strings.HasPrefix(gotDevice, `"`) || !strings.HasSuffix(gotDevice, `"`) {
		t.Errorf("device id should be quoted, got %q", gotDevice)
	}
}
