package handler

import (
	"net/http"
	"testing"

	"github.com/serkansmg/SunoApiManager/internal/model"
)

func TestStartGeneration_NoPendingSongs(t *testing.T) {
	ta := setupApp(t)

	resp := doAuthRequest(t, ta.app, "POST", "/api/generation/start", "")
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestPollNow_EmptyStore(t *testing.T) {
	ta := setupApp(t)

	resp := doAuthRequest(t, ta.app, "POST", "/api/generation/poll", "")
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["updated"] != float64(0) {
		t.Errorf("expected 0 updated, got %v", result["updated"])
	}
}

func TestGetGeneration_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp := doAuthRequest(t, ta.app, "GET", "/api/generation/no-such-clip", "")
	assertStatus(t, resp, http.StatusNotFound)
}

func TestProgress_GetAndSnapshot(t *testing.T) {
	ta := setupApp(t)

	ta.tracker.Set("clip-1", model.PhaseDownloading, 0.4, "downloading audio")

	resp := doAuthRequest(t, ta.app, "GET", "/api/progress/clip-1", "")
	assertStatus(t, resp, http.StatusOK)
	event := parseJSON(t, resp)
	if event["status"] != model.PhaseDownloading {
		t.Errorf("unexpected status: %v", event["status"])
	}

	missing := doAuthRequest(t, ta.app, "GET", "/api/progress/clip-2", "")
	assertStatus(t, missing, http.StatusNotFound)

	snap := doAuthRequest(t, ta.app, "GET", "/api/progress/", "")
	assertStatus(t, snap, http.StatusOK)
	all := parseJSON(t, snap)
	if _, ok := all["clip-1"]; !ok {
		t.Errorf("snapshot missing clip-1: %v", all)
	}
}

func TestCaptchaStatus_Unconfigured(t *testing.T) {
	ta := setupApp(t)

	resp := doAuthRequest(t, ta.app, "GET", "/api/captcha/status", "")
	assertStatus(t, resp, http.StatusOK)

	status := parseJSON(t, resp)
	if status["configured"] != false {
		t.Errorf("expected configured=false, got %v", status["configured"])
	}
}
