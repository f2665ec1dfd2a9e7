package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/serkansmg/SunoApiManager/internal/client"
	"github.com/serkansmg/SunoApiManager/internal/config"
	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/internal/progress"
	"github.com/serkansmg/SunoApiManager/internal/store"
)

var unsafeTitleChars = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)

// DownloadWorker runs the per-clip download pipeline: audio files,
// cover art, info sheet and metadata, then an optional silence pass.
type DownloadWorker struct {
	store    store.Store
	suno     client.SunoAPI
	analyzer client.SilenceAnalyzer
	tracker  *progress.Tracker

	downloadCfg config.DownloadConfig
	silenceCfg  config.SilenceConfig
	autoAnalyze bool

	analysisWG sync.WaitGroup
}

// NewDownloadWorker creates a new download worker. analyzer may be nil
// to disable silence analysis.
func NewDownloadWorker(st store.Store, suno client.SunoAPI, analyzer client.SilenceAnalyzer, tracker *progress.Tracker, downloadCfg config.DownloadConfig, silenceCfg config.SilenceConfig, autoAnalyze bool) *DownloadWorker {
	return &DownloadWorker{
		store:       st,
		suno:        suno,
		analyzer:    analyzer,
		tracker:     tracker,
		downloadCfg: downloadCfg,
		silenceCfg:  silenceCfg,
		autoAnalyze: autoAnalyze,
	}
}

// ProcessTask handles a queued clip download.
func (w *DownloadWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload struct {
		SunoID     string `json:"sunoId"`
		Redownload bool   `json:"redownload"`
		Format     string `json:"format"`
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if payload.Redownload {
		return w.Redownload(ctx, payload.SunoID, payload.Format)
	}
	return w.DownloadClip(ctx, payload.SunoID)
}

// DownloadClip fetches everything for one completed clip into its own
// directory. Audio failure fails the pipeline; cover art, info sheet
// and metadata are best-effort.
func (w *DownloadWorker) DownloadClip(ctx context.Context, sunoID string) error {
	return w.downloadClip(ctx, sunoID, "")
}

// downloadClip runs the pipeline. formatOverride, when non-empty,
// replaces the download_format setting for this run.
func (w *DownloadWorker) downloadClip(ctx context.Context, sunoID, formatOverride string) error {
	gen, err := w.store.GetGeneration(ctx, sunoID)
	if err != nil {
		return fmt.Errorf("unknown generation %s: %w", sunoID, err)
	}
	if gen.AudioURL == "" {
		return fmt.Errorf("generation %s has no audio URL", sunoID)
	}

	song, err := w.store.GetSong(ctx, gen.SongID)
	if err != nil {
		// Clips pulled from account history may have no local song.
		song = &model.Song{ID: gen.SongID, Title: sunoID}
	}

	safeTitle := sanitizeTitle(song.Title)
	dir := filepath.Join(w.downloadCfg.Directory, fmt.Sprintf("%s_%s", safeTitle, shortID(sunoID)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.fail(sunoID, err)
		return fmt.Errorf("failed to create directory: %w", err)
	}

	format := formatOverride
	if format == "" {
		format = w.format(ctx)
	}
	var firstFile string

	if format == "mp3" || format == "both" {
		w.tracker.Set(sunoID, model.PhaseDownloading, 0, "downloading mp3")
		mp3Path := filepath.Join(dir, safeTitle+".mp3")
		err := w.suno.DownloadFile(ctx, gen.AudioURL, mp3Path, func(p float64, msg string) {
			w.tracker.Set(sunoID, model.PhaseDownloading, p, msg)
		})
		if err != nil {
			w.fail(sunoID, err)
			return fmt.Errorf("mp3 download failed: %w", err)
		}
		firstFile = mp3Path
	}

	if format == "wav" || format == "both" {
		w.tracker.Set(sunoID, model.PhaseConverting, model.IndeterminateProgress, "converting to wav")
		wavPath := filepath.Join(dir, safeTitle+".wav")
		err := w.suno.DownloadWAV(ctx, sunoID, wavPath, func(p float64, msg string) {
			w.tracker.Set(sunoID, model.PhaseDownloading, p, msg)
		})
		if err != nil {
			if format == "both" {
				// The mp3 already landed; record the miss and move on.
				log.Printf("[Download] wav failed for %s, keeping mp3: %v", sunoID, err)
			} else {
				// WAV-only: fall back to the mp3 rather than failing.
				log.Printf("[Download] wav failed for %s, falling back to mp3: %v", sunoID, err)
				w.tracker.Set(sunoID, model.PhaseDownloading, 0, "wav failed, downloading mp3")
				mp3Path := filepath.Join(dir, safeTitle+".mp3")
				ferr := w.suno.DownloadFile(ctx, gen.AudioURL, mp3Path, func(p float64, msg string) {
					w.tracker.Set(sunoID, model.PhaseDownloading, p, msg)
				})
				if ferr != nil {
					w.fail(sunoID, ferr)
					return fmt.Errorf("mp3 fallback failed: %w", ferr)
				}
				firstFile = mp3Path
			}
		} else if firstFile == "" {
			firstFile = wavPath
		}
	}

	// Full clip record is best-effort; the pipeline continues without it.
	w.tracker.Set(sunoID, model.PhaseFetchingMeta, model.IndeterminateProgress, "fetching metadata")
	clipRaw, err := w.suno.GetClip(ctx, sunoID)
	if err != nil {
		log.Printf("[Download] clip fetch failed for %s: %v", sunoID, err)
		clipRaw = nil
	}

	w.saveCover(ctx, dir, gen, clipRaw)

	if err := w.writeInfoFile(dir, song, gen, clipRaw); err != nil {
		log.Printf("[Download] info file failed for %s: %v", sunoID, err)
	}
	if err := w.writeMetadataFile(dir, song, gen, clipRaw); err != nil {
		log.Printf("[Download] metadata file failed for %s: %v", sunoID, err)
	}

	gen.Downloaded = true
	gen.FilePath = firstFile
	gen.UpdatedAt = time.Now()
	if err := w.store.SaveGeneration(ctx, gen); err != nil {
		w.fail(sunoID, err)
		return fmt.Errorf("failed to record download: %w", err)
	}

	if w.autoAnalyze && w.analyzer != nil && firstFile != "" {
		w.analysisWG.Add(1)
		go func(path string) {
			defer w.analysisWG.Done()
			w.analyze(context.Background(), sunoID, path)
		}(firstFile)
	} else {
		w.tracker.Set(sunoID, model.PhaseComplete, 1.0, "done")
	}

	log.Printf("[Download] clip %s saved to %s", sunoID, dir)
	return nil
}

// Redownload clears a clip's audio files and runs the pipeline again,
// optionally in a different format than the download_format setting.
// Cover art, info sheet and metadata survive the cleanup; an existing
// cover is not re-fetched.
func (w *DownloadWorker) Redownload(ctx context.Context, sunoID, format string) error {
	gen, err := w.store.GetGeneration(ctx, sunoID)
	if err != nil {
		return fmt.Errorf("unknown generation %s: %w", sunoID, err)
	}

	if gen.FilePath != "" {
		dir := filepath.Dir(gen.FilePath)
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, entry := range entries {
				ext := strings.ToLower(filepath.Ext(entry.Name()))
				if ext == ".mp3" || ext == ".wav" {
					if rerr := os.Remove(filepath.Join(dir, entry.Name())); rerr != nil {
						log.Printf("[Download] failed to remove %s: %v", entry.Name(), rerr)
					}
				}
			}
		}
	}

	gen.Downloaded = false
	gen.FilePath = ""
	gen.UpdatedAt = time.Now()
	if err := w.store.SaveGeneration(ctx, gen); err != nil {
		return fmt.Errorf("failed to reset generation: %w", err)
	}

	return w.downloadClip(ctx, sunoID, format)
}

// WaitForAnalysis blocks until in-flight silence passes finish.
func (w *DownloadWorker) WaitForAnalysis() {
	w.analysisWG.Wait()
}

// analyze runs the silence pass and stores the verdict.
func (w *DownloadWorker) analyze(ctx context.Context, sunoID, path string) {
	w.tracker.Set(sunoID, model.PhaseAnalyzing, model.IndeterminateProgress, "analyzing silence")

	result, err := w.analyzer.Analyze(ctx, path, w.silenceCfg.ThresholdDB, w.silenceCfg.MinLengthMS)
	if err != nil {
		log.Printf("[Download] silence analysis failed for %s: %v", sunoID, err)
		w.tracker.Set(sunoID, model.PhaseComplete, 1.0, "done (analysis failed)")
		return
	}

	gen, err := w.store.GetGeneration(ctx, sunoID)
	if err != nil {
		log.Printf("[Download] generation %s vanished during analysis", sunoID)
		return
	}
	gen.HasSilence = result.HasSilence
	if data, err := json.Marshal(result); err == nil {
		gen.SilenceJSON = string(data)
	}
	gen.UpdatedAt = time.Now()
	if err := w.store.SaveGeneration(ctx, gen); err != nil {
		log.Printf("[Download] failed to save analysis for %s: %v", sunoID, err)
	}

	w.tracker.Set(sunoID, model.PhaseComplete, 1.0, "done")
}

// saveCover downloads the clip's cover art. Prefers the large variant,
// skips silently if a cover is already on disk.
func (w *DownloadWorker) saveCover(ctx context.Context, dir string, gen *model.Generation, clipRaw map[string]interface{}) {
	coverURL := gen.ImageURL
	if clipRaw != nil {
		if large, _ := clipRaw["image_large_url"].(string); large != "" {
			coverURL = large
		} else if img, _ := clipRaw["image_url"].(string); img != "" {
			coverURL = img
		}
	}
	if coverURL == "" {
		return
	}

	ext := coverExt(coverURL)
	coverPath := filepath.Join(dir, "cover"+ext)
	if _, err := os.Stat(coverPath); err == nil {
		return
	}

	if err := w.suno.DownloadFile(ctx, coverURL, coverPath, nil); err != nil {
		log.Printf("[Download] cover failed: %v", err)
	}
}

// writeInfoFile renders the human-readable song sheet.
func (w *DownloadWorker) writeInfoFile(dir string, song *model.Song, gen *model.Generation, clipRaw map[string]interface{}) error {
	var b strings.Builder

	b.WriteString("[song]\n")
	fmt.Fprintf(&b, "title = %s\n", song.Title)
	fmt.Fprintf(&b, "suno_id = %s\n", gen.SunoID)
	fmt.Fprintf(&b, "duration = %s\n", formatDuration(gen.Duration))
	if song.Model != "" {
		fmt.Fprintf(&b, "model = %s\n", song.Model)
	}
	if clipRaw != nil {
		if created, _ := clipRaw["created_at"].(string); created != "" {
			fmt.Fprintf(&b, "created_at = %s\n", created)
		}
	}
	fmt.Fprintf(&b, "url = https://suno.com/song/%s\n", gen.SunoID)
	if gen.AudioURL != "" {
		fmt.Fprintf(&b, "audio_url = %s\n", gen.AudioURL)
	}
	if gen.ImageURL != "" {
		fmt.Fprintf(&b, "image_url = %s\n", gen.ImageURL)
	}

	b.WriteString("\n[tags]\n")
	fmt.Fprintf(&b, "style = %s\n", song.Tags)
	if song.NegativeTags != "" {
		fmt.Fprintf(&b, "negative = %s\n", song.NegativeTags)
	}

	if song.Lyrics != "" {
		b.WriteString("\n[lyrics]\n")
		b.WriteString(song.Lyrics)
		b.WriteString("\n")
	}

	return os.WriteFile(filepath.Join(dir, "info.txt"), []byte(b.String()), 0o644)
}

// writeMetadataFile renders the machine-readable record, raw remote
// clip included.
func (w *DownloadWorker) writeMetadataFile(dir string, song *model.Song, gen *model.Generation, clipRaw map[string]interface{}) error {
	meta := map[string]interface{}{
		"suno_id":   gen.SunoID,
		"title":     song.Title,
		"audio_url": gen.AudioURL,
		"image_url": gen.ImageURL,
		"video_url": gen.VideoURL,
		"duration":  gen.Duration,
		"song": map[string]interface{}{
			"id":            song.ID,
			"title":         song.Title,
			"lyrics":        song.Lyrics,
			"tags":          song.Tags,
			"negative_tags": song.NegativeTags,
			"model":         song.Model,
			"batch_name":    song.BatchName,
		},
	}
	if clipRaw != nil {
		meta["suno_raw"] = clipRaw
		if created, _ := clipRaw["created_at"].(string); created != "" {
			meta["created_at"] = created
		}
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644)
}

func (w *DownloadWorker) fail(sunoID string, err error) {
	w.tracker.Set(sunoID, model.PhaseError, 0, err.Error())
}

// format resolves the runtime download format setting.
func (w *DownloadWorker) format(ctx context.Context) string {
	val, err := w.store.GetSetting(ctx, "download_format")
	if err != nil {
		val = w.downloadCfg.Format
	}
	switch val {
	case "mp3", "wav", "both":
		return val
	}
	return "mp3"
}

// sanitizeTitle makes a song title filesystem-safe: letters, digits,
// underscores, spaces and dashes only, capped at 50 runes.
func sanitizeTitle(title string) string {
	clean := unsafeTitleChars.ReplaceAllString(title, "")
	clean = strings.TrimSpace(clean)
	if runes := []rune(clean); len(runes) > 50 {
		clean = strings.TrimSpace(string(runes[:50]))
	}
	if clean == "" {
		return "untitled"
	}
	return clean
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration renders seconds as m:ss.
func formatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func coverExt(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, ".png"):
		return ".png"
	case strings.Contains(lower, ".webp"):
		return ".webp"
	default:
		return ".jpeg"
	}
}
