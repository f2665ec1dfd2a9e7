package worker

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/serkansmg/SunoApiManager/internal/client"
	"github.com/serkansmg/SunoApiManager/internal/config"
	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/internal/progress"
	"github.com/serkansmg/SunoApiManager/internal/store"
)

// Feed queries are chunked to keep URLs bounded.
const queryBatchSize = 20

// DownloadEnqueuer hands completed clips to the download pipeline.
type DownloadEnqueuer interface {
	EnqueueDownload(ctx context.Context, sunoID string) error
}

// PollWorker reconciles local generation records against the remote
// feed and hands newly completed clips to the downloader.
type PollWorker struct {
	store      store.Store
	suno       client.SunoAPI
	notifier   progress.Notifier
	downloader DownloadEnqueuer
	cfg        config.GenerationConfig
}

// NewPollWorker creates a new reconcile worker. downloader may be nil
// to disable the auto-download handoff.
func NewPollWorker(st store.Store, suno client.SunoAPI, notifier progress.Notifier, downloader DownloadEnqueuer, cfg config.GenerationConfig) *PollWorker {
	return &PollWorker{
		store:      st,
		suno:       suno,
		notifier:   notifier,
		downloader: downloader,
		cfg:        cfg,
	}
}

// RunLoop reconciles on a ticker until ctx is cancelled. The interval
// follows the polling_interval setting, so edits apply from the next
// tick without a restart.
func (w *PollWorker) RunLoop(ctx context.Context) {
	interval := w.interval(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[Poll] reconcile loop started (every %s)", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Poll] reconcile loop stopped")
			return
		case <-ticker.C:
			if _, err := w.ReconcileOnce(ctx); err != nil {
				log.Printf("[Poll] reconcile failed: %v", err)
			}
			if next := w.interval(ctx); next != interval {
				log.Printf("[Poll] reconcile interval changed to %s", next)
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// interval resolves the runtime polling interval setting.
func (w *PollWorker) interval(ctx context.Context) time.Duration {
	seconds := w.cfg.PollingInterval
	if val, err := w.store.GetSetting(ctx, "polling_interval"); err == nil {
		if n, perr := strconv.Atoi(val); perr == nil && n > 0 {
			seconds = n
		}
	}
	if seconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// ReconcileOnce updates every incomplete generation from the remote
// feed. A failed feed query aborts the whole pass; no partial state is
// written from a bad read.
func (w *PollWorker) ReconcileOnce(ctx context.Context) (*model.PollStatusResponse, error) {
	incomplete, err := w.store.GetIncompleteGenerations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load incomplete generations: %w", err)
	}

	resp := &model.PollStatusResponse{Message: "nothing to reconcile"}
	if len(incomplete) == 0 {
		return resp, nil
	}

	ids := make([]string, 0, len(incomplete))
	for _, gen := range incomplete {
		ids = append(ids, gen.SunoID)
	}

	infoByID := make(map[string]model.AudioInfo, len(ids))
	for start := 0; start < len(ids); start += queryBatchSize {
		end := start + queryBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		clips, err := w.suno.GetAudioInfo(ctx, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("feed query failed: %w", err)
		}
		for _, clip := range clips {
			infoByID[clip.ID] = clip
		}
	}

	autoDownload := w.boolSetting(ctx, "auto_download", w.cfg.AutoDownload)
	minDuration := w.floatSetting(ctx, "min_duration_filter", w.cfg.MinDurationFilter)

	updatedSongs := make(map[string]bool)
	for _, gen := range incomplete {
		clip, ok := infoByID[gen.SunoID]
		if !ok {
			continue
		}

		newlyComplete := clip.Status == model.GenStatusComplete && gen.SunoStatus != model.GenStatusComplete

		gen.SunoStatus = clip.Status
		if clip.AudioURL != "" {
			gen.AudioURL = clip.AudioURL
		}
		if clip.ImageURL != "" {
			gen.ImageURL = clip.ImageURL
		}
		if clip.VideoURL != "" {
			gen.VideoURL = clip.VideoURL
		}
		if clip.Duration > 0 {
			gen.Duration = clip.Duration
		}
		if clip.ErrorMessage != "" {
			gen.ErrorMessage = clip.ErrorMessage
		}
		gen.UpdatedAt = time.Now()
		if err := w.store.SaveGeneration(ctx, gen); err != nil {
			log.Printf("[Poll] failed to save generation %s: %v", gen.SunoID, err)
			continue
		}

		resp.Updated++
		if w.updateSong(ctx, gen, clip) {
			updatedSongs[gen.SongID] = true
		}

		w.broadcast(model.EventGenerationUpdate, map[string]interface{}{
			"song_id":  gen.SongID,
			"suno_id":  gen.SunoID,
			"status":   gen.SunoStatus,
			"duration": gen.Duration,
		})

		if newlyComplete && autoDownload && !gen.Downloaded && gen.AudioURL != "" {
			if gen.Duration >= minDuration {
				resp.AutoDownload++
				resp.AutoDownloadIDs = append(resp.AutoDownloadIDs, gen.SunoID)
				if w.downloader != nil {
					if err := w.downloader.EnqueueDownload(ctx, gen.SunoID); err != nil {
						log.Printf("[Poll] failed to enqueue download for %s: %v", gen.SunoID, err)
					}
				}
			} else {
				log.Printf("[Poll] skipping %s: duration %.0fs below the %.0fs floor", gen.SunoID, gen.Duration, minDuration)
			}
		}
	}

	for songID := range updatedSongs {
		resp.UpdatedSongIDs = append(resp.UpdatedSongIDs, songID)
	}
	resp.Message = fmt.Sprintf("updated %d generations", resp.Updated)
	if resp.Updated > 0 {
		log.Printf("[Poll] %s (%d queued for download)", resp.Message, resp.AutoDownload)
	}
	return resp, nil
}

// updateSong promotes a song when one of its clips finishes. The first
// completed clip wins; a later clip error never downgrades a complete
// song.
func (w *PollWorker) updateSong(ctx context.Context, gen *model.Generation, clip model.AudioInfo) bool {
	song, err := w.store.GetSong(ctx, gen.SongID)
	if err != nil {
		if err != store.ErrNotFound {
			log.Printf("[Poll] failed to load song %s: %v", gen.SongID, err)
		}
		return false
	}
	if song.Status == model.SongStatusComplete {
		return false
	}

	switch clip.Status {
	case model.GenStatusComplete:
		song.Status = model.SongStatusComplete
		song.ErrorMessage = ""
	case model.GenStatusError:
		song.Status = model.SongStatusError
		if clip.ErrorMessage != "" {
			song.ErrorMessage = clip.ErrorMessage
		} else {
			song.ErrorMessage = "generation failed"
		}
	default:
		return false
	}

	song.UpdatedAt = time.Now()
	if err := w.store.SaveSong(ctx, song); err != nil {
		log.Printf("[Poll] failed to save song %s: %v", song.ID, err)
		return false
	}
	return true
}

func (w *PollWorker) broadcast(event string, data interface{}) {
	if w.notifier != nil {
		w.notifier.BroadcastEvent(event, data)
	}
}

func (w *PollWorker) boolSetting(ctx context.Context, key string, fallback bool) bool {
	val, err := w.store.GetSetting(ctx, key)
	if err != nil {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

func (w *PollWorker) floatSetting(ctx context.Context, key string, fallback float64) float64 {
	val, err := w.store.GetSetting(ctx, key)
	if err != nil {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}
