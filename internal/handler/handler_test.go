package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/serkansmg/SunoApiManager/internal/client"
	"github.com/serkansmg/SunoApiManager/internal/config"
	"github.com/serkansmg/SunoApiManager/internal/middleware"
	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/internal/progress"
	"github.com/serkansmg/SunoApiManager/internal/service"
	"github.com/serkansmg/SunoApiManager/internal/store"
	"github.com/serkansmg/SunoApiManager/internal/worker"
)

const testJWTSecret = "test-secret-for-handlers"

// sunoStub satisfies the worker-facing client surface without talking
// to the network.
type sunoStub struct{}

func (s *sunoStub) CustomGenerate(ctx context.Context, req *model.CustomGenerateRequest) ([]model.AudioInfo, error) {
	return nil, nil
}

func (s *sunoStub) GetAudioInfo(ctx context.Context, ids []string) ([]model.AudioInfo, error) {
	return nil, nil
}

func (s *sunoStub) GetClip(ctx context.Context, clipID string) (map[string]interface{}, error) {
	return nil, client.ErrNotFound
}

func (s *sunoStub) DownloadFile(ctx context.Context, url, destPath string, onProgress client.ProgressFunc) error {
	return nil
}

func (s *sunoStub) DownloadWAV(ctx context.Context, clipID, destPath string, onProgress client.ProgressFunc) error {
	return nil
}

// testApp wires the authenticated routes against an in-memory store.
// The asynq-backed routes are registered but only exercised on paths
// that fail before enqueueing.
type testApp struct {
	app     *fiber.App
	store   store.Store
	tracker *progress.Tracker
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	st := store.NewMemoryStore()
	validate := validator.New()

	genCfg := config.GenerationConfig{
		BatchSize:         5,
		BatchDelay:        30,
		PollingInterval:   10,
		MinDurationFilter: 180,
		AutoDownload:      true,
	}
	dlCfg := config.DownloadConfig{Directory: t.TempDir(), Format: "mp3"}

	songService := service.NewSongService(st)
	settingsService := service.NewSettingsService(st)
	if err := settingsService.SeedDefaults(context.Background(), genCfg, dlCfg); err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}

	poller := worker.NewPollWorker(st, &sunoStub{}, nil, nil, genCfg)
	generationService := service.NewGenerationService(st, nil, poller, genCfg)
	downloadService := service.NewDownloadService(st, nil, nil, genCfg)

	tracker := progress.NewTracker(nil)

	songHandler := NewSongHandler(songService, validate)
	generationHandler := NewGenerationHandler(generationService, downloadService)
	settingsHandler := NewSettingsHandler(settingsService, validate)
	progressHandler := NewProgressHandler(tracker)
	captchaHandler := NewCaptchaHandler(nil)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New()
	api := app.Group("/api", authMiddleware.Authenticate())

	songs := api.Group("/songs")
	songs.Post("/", songHandler.Save)
	songs.Get("/", songHandler.List)
	songs.Get("/stats", songHandler.Stats)
	songs.Get("/:id", songHandler.Get)
	songs.Delete("/:id", songHandler.Delete)
	songs.Post("/:id/retry", songHandler.Retry)

	generation := api.Group("/generation")
	generation.Post("/start", generationHandler.Start)
	generation.Post("/poll", generationHandler.PollNow)
	generation.Get("/", generationHandler.List)
	generation.Get("/:sunoId", generationHandler.Get)

	settings := api.Group("/settings")
	settings.Get("/", settingsHandler.All)
	settings.Get("/:key", settingsHandler.Get)
	settings.Put("/:key", settingsHandler.Set)

	prog := api.Group("/progress")
	prog.Get("/", progressHandler.Snapshot)
	prog.Get("/:sunoId", progressHandler.Get)

	captcha := api.Group("/captcha")
	captcha.Get("/status", captchaHandler.Status)

	return &testApp{app: app, store: st, tracker: tracker}
}

func authToken(t *testing.T) string {
	t.Helper()
	m := middleware.NewAuthMiddleware(testJWTSecret)
	token, err := m.GenerateToken("test-user", "test@example.com")
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

func doRequest(app *fiber.App, method, path, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + authToken(t),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

func parseJSONArray(t *testing.T, resp *http.Response) []interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result []interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON array: %v\nbody: %s", err, body)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
