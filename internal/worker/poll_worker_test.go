package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/internal/store"
)

func seedGeneration(t *testing.T, st store.Store, songID, sunoID, status string) *model.Generation {
	t.Helper()
	gen := &model.Generation{
		SongID:     songID,
		SunoID:     sunoID,
		SunoStatus: status,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := st.SaveGeneration(context.Background(), gen); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return gen
}

func TestReconcileOnce_ChunksQueries(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	suno := newFakeSuno()

	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("clip-%02d", i)
		seedGeneration(t, st, "song-x", id, model.GenStatusQueued)
		suno.feedByID[id] = model.AudioInfo{ID: id, Status: model.GenStatusStreaming}
	}

	w := NewPollWorker(st, suno, &recordingNotifier{}, nil, genConfig())
	resp, err := w.ReconcileOnce(ctx)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	if len(suno.feedCalls) != 2 {
		t.Fatalf("expected 2 feed queries, got %d", len(suno.feedCalls))
	}
	if len(suno.feedCalls[0]) != 20 || len(suno.feedCalls[1]) != 5 {
		t.Errorf("expected chunks of 20 and 5, got %d and %d", len(suno.feedCalls[0]), len(suno.feedCalls[1]))
	}
	if resp.Updated != 25 {
		t.Errorf("expected 25 updates, got %d", resp.Updated)
	}
}

func TestInterval_FollowsRuntimeSetting(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	w := NewPollWorker(st, newFakeSuno(), &recordingNotifier{}, nil, genConfig())

	// Config fallback before any setting exists.
	if got := w.interval(ctx); got != 10*time.Second {
		t.Errorf("expected config interval 10s, got %s", got)
	}

	// A setting edit takes effect without a restart.
	if err := st.SetSetting(ctx, "polling_interval", "25"); err != nil {
		t.Fatalf("failed to set setting: %v", err)
	}
	if got := w.interval(ctx); got != 25*time.Second {
		t.Errorf("expected runtime interval 25s, got %s", got)
	}

	// Garbage values fall back to the config.
	if err := st.SetSetting(ctx, "polling_interval", "zero"); err != nil {
		t.Fatalf("failed to set setting: %v", err)
	}
	if got := w.interval(ctx); got != 10*time.Second {
		t.Errorf("expected fallback interval 10s, got %s", got)
	}
}

func TestReconcileOnce_QueryFailureAbortsCycle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	suno := newFakeSuno()
	suno.feedErr = errors.New("feed unavailable")

	seedGeneration(t, st, "song-x", "clip-1", model.GenStatusQueued)

	w := NewPollWorker(st, suno, &recordingNotifier{}, nil, genConfig())
	if _, err := w.ReconcileOnce(ctx); err == nil {
		t.Fatal("expected error when the feed query fails")
	}

	// Nothing was written from the failed read.
	gen, _ := st.GetGeneration(ctx, "clip-1")
	if gen.SunoStatus != model.GenStatusQueued {
		t.Errorf("generation must be untouched, got %s", gen.SunoStatus)
	}
}

func TestReconcileOnce_DurationFilter(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	suno := newFakeSuno()
	enq := &fakeEnqueuer{}

	seedGeneration(t, st, "song-a", "long", model.GenStatusStreaming)
	seedGeneration(t, st, "song-b", "short", model.GenStatusStreaming)
	suno.feedByID["long"] = model.AudioInfo{
		ID: "long", Status: model.GenStatusComplete,
		AudioURL: "https://cdn/long.mp3", Duration: 200,
	}
	suno.feedByID["short"] = model.AudioInfo{
		ID: "short", Status: model.GenStatusComplete,
		AudioURL: "https://cdn/short.mp3", Duration: 50,
	}

	w := NewPollWorker(st, suno, &recordingNotifier{}, enq, genConfig())
	resp, err := w.ReconcileOnce(ctx)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	if len(enq.ids) != 1 || enq.ids[0] != "long" {
		t.Fatalf("expected only 'long' queued, got %v", enq.ids)
	}
	if resp.AutoDownload != 1 {
		t.Errorf("expected 1 auto-download, got %d", resp.AutoDownload)
	}

	// Both generations are still updated to complete.
	short, _ := st.GetGeneration(ctx, "short")
	if short.SunoStatus != model.GenStatusComplete || short.Duration != 50 {
		t.Errorf("short clip not updated: %+v", short)
	}
}

func TestReconcileOnce_FirstCompleteClipWins(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	suno := newFakeSuno()

	song := &model.Song{ID: "song-a", Title: "A", Status: model.SongStatusSubmitted, CreatedAt: time.Now()}
	st.SaveSong(ctx, song)
	seedGeneration(t, st, "song-a", "c1", model.GenStatusStreaming)
	seedGeneration(t, st, "song-a", "c2", model.GenStatusStreaming)

	suno.feedByID["c1"] = model.AudioInfo{ID: "c1", Status: model.GenStatusComplete, AudioURL: "https://cdn/c1.mp3", Duration: 200}
	suno.feedByID["c2"] = model.AudioInfo{ID: "c2", Status: model.GenStatusError, ErrorMessage: "render failed"}

	w := NewPollWorker(st, suno, &recordingNotifier{}, nil, genConfig())
	if _, err := w.ReconcileOnce(ctx); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	// The completed clip promotes the song; the failed sibling must not
	// downgrade it afterwards.
	got, _ := st.GetSong(ctx, "song-a")
	if got.Status != model.SongStatusComplete {
		t.Errorf("expected song complete, got %s", got.Status)
	}

	c2, _ := st.GetGeneration(ctx, "c2")
	if c2.SunoStatus != model.GenStatusError || c2.ErrorMessage != "render failed" {
		t.Errorf("error clip not recorded: %+v", c2)
	}
}

func TestReconcileOnce_ClipErrorMarksSong(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	suno := newFakeSuno()

	song := &model.Song{ID: "song-a", Title: "A", Status: model.SongStatusSubmitted, CreatedAt: time.Now()}
	st.SaveSong(ctx, song)
	seedGeneration(t, st, "song-a", "c1", model.GenStatusStreaming)
	suno.feedByID["c1"] = model.AudioInfo{ID: "c1", Status: model.GenStatusError, ErrorMessage: "moderated"}

	w := NewPollWorker(st, suno, &recordingNotifier{}, nil, genConfig())
	if _, err := w.ReconcileOnce(ctx); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	got, _ := st.GetSong(ctx, "song-a")
	if got.Status != model.SongStatusError || got.ErrorMessage != "moderated" {
		t.Errorf("song error not recorded: %+v", got)
	}
}

func TestReconcileOnce_AutoDownloadDisabled(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.SetSetting(ctx, "auto_download", "false")
	suno := newFakeSuno()
	enq := &fakeEnqueuer{}

	seedGeneration(t, st, "song-a", "c1", model.GenStatusStreaming)
	suno.feedByID["c1"] = model.AudioInfo{ID: "c1", Status: model.GenStatusComplete, AudioURL: "https://cdn/c1.mp3", Duration: 200}

	w := NewPollWorker(st, suno, &recordingNotifier{}, enq, genConfig())
	if _, err := w.ReconcileOnce(ctx); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if len(enq.ids) != 0 {
		t.Errorf("expected no downloads when disabled, got %v", enq.ids)
	}
}
