package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/serkansmg/SunoApiManager/internal/client"
	"github.com/serkansmg/SunoApiManager/internal/model"
)

// fakeSuno implements client.SunoAPI for worker tests.
type fakeSuno struct {
	mu sync.Mutex

	// CustomGenerate
	generateTitles []string
	failTitles     map[string]error
	clipsPerSong   int

	// GetAudioInfo
	feedCalls [][]string
	feedByID  map[string]model.AudioInfo
	feedErr   error

	// GetClip
	clipRaw map[string]map[string]interface{}

	// Downloads
	downloadedURLs []string
	downloadErr    error
	wavErr         error
}

var _ client.SunoAPI = (*fakeSuno)(nil)

func newFakeSuno() *fakeSuno {
	return &fakeSuno{
		clipsPerSong: 2,
		failTitles:   make(map[string]error),
		feedByID:     make(map[string]model.AudioInfo),
		clipRaw:      make(map[string]map[string]interface{}),
	}
}

func (f *fakeSuno) CustomGenerate(ctx context.Context, req *model.CustomGenerateRequest) ([]model.AudioInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateTitles = append(f.generateTitles, req.Title)
	if err, ok := f.failTitles[req.Title]; ok {
		return nil, err
	}
	clips := make([]model.AudioInfo, 0, f.clipsPerSong)
	for i := 0; i < f.clipsPerSong; i++ {
		clips = append(clips, model.AudioInfo{
			ID:     fmt.Sprintf("%s-clip-%d", req.Title, i),
			Status: model.GenStatusSubmitted,
		})
	}
	return clips, nil
}

func (f *fakeSuno) GetAudioInfo(ctx context.Context, ids []string) ([]model.AudioInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedCalls = append(f.feedCalls, append([]string(nil), ids...))
	if f.feedErr != nil {
		return nil, f.feedErr
	}
	out := make([]model.AudioInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := f.feedByID[id]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func (f *fakeSuno) GetClip(ctx context.Context, clipID string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if raw, ok := f.clipRaw[clipID]; ok {
		return raw, nil
	}
	return nil, fmt.Errorf("clip not found")
}

func (f *fakeSuno) DownloadFile(ctx context.Context, url, destPath string, onProgress client.ProgressFunc) error {
	f.mu.Lock()
	f.downloadedURLs = append(f.downloadedURLs, url)
	err := f.downloadErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(0.5, "downloading")
		onProgress(1.0, "downloading")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte("fake-audio"), 0o644)
}

func (f *fakeSuno) DownloadWAV(ctx context.Context, clipID, destPath string, onProgress client.ProgressFunc) error {
	f.mu.Lock()
	err := f.wavErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(destPath, []byte("fake-wav"), 0o644)
}

// recordingNotifier collects broadcast events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	name string
	data interface{}
}

func (n *recordingNotifier) BroadcastEvent(event string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{name: event, data: data})
}

func (n *recordingNotifier) byName(name string) []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []recordedEvent
	for _, e := range n.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

// sleepRecorder replaces real delays with a log of requested durations.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return nil
}

// fakeEnqueuer records download handoffs.
type fakeEnqueuer struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeEnqueuer) EnqueueDownload(ctx context.Context, sunoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, sunoID)
	return nil
}

// fakeAnalyzer returns a fixed verdict.
type fakeAnalyzer struct {
	result *model.SilenceAnalysis
	err    error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, filePath string, thresholdDB, minLengthMS int) (*model.SilenceAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}
