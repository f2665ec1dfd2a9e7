package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/serkansmg/SunoApiManager/internal/model"
)

func TestDownloadFile_UnknownLengthReportsIndeterminate(t *testing.T) {
	payload := strings.Repeat("audio-bytes-", 4096)
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Length: net/http streams this chunked.
		w.Write([]byte(payload))
	}))
	defer cdn.Close()

	clerk := newFakeClerk(t)
	c := newTestClient(t, "http://unused", clerk.server.URL)

	dest := filepath.Join(t.TempDir(), "song.mp3")
	var lastProgress float64
	err := c.DownloadFile(context.Background(), cdn.URL+"/song.mp3", dest, func(p float64, _ string) {
		lastProgress = p
	})
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(data) != payload {
		t.Errorf("downloaded content mismatch: %d bytes vs %d", len(data), len(payload))
	}
	if lastProgress != model.IndeterminateProgress {
		t.Errorf("expected indeterminate progress, got %v", lastProgress)
	}
}

func TestDownloadFile(t *testing.T) {
	payload := strings.Repeat("audio-bytes-", 4096)
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write([]byte(payload))
	}))
	defer cdn.Close()

	clerk := newFakeClerk(t)
	c := newTestClient(t, "http://unused", clerk.server.URL)

	dest := filepath.Join(t.TempDir(), "nested", "song.mp3")
	var lastProgress float64
	err := c.DownloadFile(context.Background(), cdn.URL+"/song.mp3", dest, func(p float64, _ string) {
		lastProgress = p
	})
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(data) != payload {
		t.Errorf("downloaded content mismatch: %d bytes vs %d", len(data), len(payload))
	}
	if lastProgress != 1.0 {
		t.Errorf("expected final progress 1.0, got %v", lastProgress)
	}
}

func TestDownloadFile_HTTPError(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer cdn.Close()

	clerk := newFakeClerk(t)
	c := newTestClient(t, "http://unused", clerk.server.URL)

	dest := filepath.Join(t.TempDir(), "song.mp3")
	err := c.DownloadFile(context.Background(), cdn.URL+"/expired", dest, nil)
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	var dlErr *DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected DownloadError, got %T", err)
	}
}
