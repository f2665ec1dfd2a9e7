package worker

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/serkansmg/SunoApiManager/internal/client"
	"github.com/serkansmg/SunoApiManager/internal/config"
	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/internal/progress"
	"github.com/serkansmg/SunoApiManager/internal/store"
)

// Task type names
const (
	TaskTypeGenerateBatch = "generate:batch"
	TaskTypeDownloadClip  = "download:clip"
)

const (
	// Pause between consecutive submissions inside a batch.
	interSongDelay = 3 * time.Second
	// Extra pause after the API pushes back.
	rateLimitCooldown = 60 * time.Second
)

// GenerateWorker submits pending songs to Suno in rate-limited batches.
// Songs are processed strictly in the order they were saved.
type GenerateWorker struct {
	store    store.Store
	suno     client.SunoAPI
	notifier progress.Notifier
	cfg      config.GenerationConfig

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGenerateWorker creates a new generation worker.
func NewGenerateWorker(st store.Store, suno client.SunoAPI, notifier progress.Notifier, cfg config.GenerationConfig) *GenerateWorker {
	return &GenerateWorker{
		store:    st,
		suno:     suno,
		notifier: notifier,
		cfg:      cfg,
		sleep:    sleepCtx,
	}
}

// ProcessTask handles a queued batch generation task.
func (w *GenerateWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	return w.RunBatch(ctx)
}

// RunBatch submits every pending song. A song that fails is marked and
// skipped; the run keeps going. Returns the number of successful
// submissions.
func (w *GenerateWorker) RunBatch(ctx context.Context) error {
	songs, err := w.store.GetPendingSongs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending songs: %w", err)
	}
	if len(songs) == 0 {
		log.Printf("[Generate] no pending songs")
		return nil
	}

	batchSize := w.intSetting(ctx, "batch_size", w.cfg.BatchSize)
	if batchSize < 1 {
		batchSize = 1
	}
	batchDelay := time.Duration(w.intSetting(ctx, "batch_delay", w.cfg.BatchDelay)) * time.Second
	totalBatches := (len(songs) + batchSize - 1) / batchSize

	log.Printf("[Generate] starting run: %d songs, batch size %d", len(songs), batchSize)

	submitted := 0
	for i, song := range songs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := w.submitSong(ctx, song); err != nil {
			log.Printf("[Generate] song %s failed: %v", song.ID, err)
			w.markSongError(ctx, song, err)
			if client.IsRateLimitError(err) {
				log.Printf("[Generate] rate limited, cooling down %s", rateLimitCooldown)
				if serr := w.sleep(ctx, rateLimitCooldown); serr != nil {
					return serr
				}
			}
		} else {
			submitted++
		}

		if i == len(songs)-1 {
			break
		}

		posInBatch := (i + 1) % batchSize
		if posInBatch == 0 {
			batch := (i + 1) / batchSize
			w.broadcast(model.EventGenerationBatch, map[string]interface{}{
				"batch":         batch,
				"total_batches": totalBatches,
				"waiting":       int(batchDelay.Seconds()),
			})
			log.Printf("[Generate] batch %d/%d done, waiting %s", batch, totalBatches, batchDelay)
			if err := w.sleep(ctx, batchDelay); err != nil {
				return err
			}
		} else {
			if err := w.sleep(ctx, interSongDelay); err != nil {
				return err
			}
		}
	}

	log.Printf("[Generate] run finished: %d/%d submitted", submitted, len(songs))
	return nil
}

// submitSong marks a song submitted and creates a generation record
// per returned clip.
func (w *GenerateWorker) submitSong(ctx context.Context, song *model.Song) error {
	song.Status = model.SongStatusSubmitted
	song.ErrorMessage = ""
	song.UpdatedAt = time.Now()
	if err := w.store.SaveSong(ctx, song); err != nil {
		return fmt.Errorf("failed to mark song submitted: %w", err)
	}

	clips, err := w.suno.CustomGenerate(ctx, &model.CustomGenerateRequest{
		Prompt:           song.Lyrics,
		Tags:             song.Tags,
		Title:            song.Title,
		NegativeTags:     song.NegativeTags,
		MakeInstrumental: song.MakeInstrumental,
		Model:            song.Model,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	for _, clip := range clips {
		if clip.ID == "" {
			continue
		}
		status := clip.Status
		if status == "" {
			status = model.GenStatusSubmitted
		}
		gen := &model.Generation{
			SongID:     song.ID,
			SunoID:     clip.ID,
			AudioURL:   clip.AudioURL,
			ImageURL:   clip.ImageURL,
			SunoStatus: status,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := w.store.SaveGeneration(ctx, gen); err != nil {
			return fmt.Errorf("failed to save generation %s: %w", clip.ID, err)
		}
	}

	w.broadcast(model.EventGenerationUpdate, map[string]interface{}{
		"song_id": song.ID,
		"status":  string(song.Status),
		"clips":   len(clips),
	})
	log.Printf("[Generate] song %s submitted (%d clips)", song.ID, len(clips))
	return nil
}

func (w *GenerateWorker) markSongError(ctx context.Context, song *model.Song, cause error) {
	song.Status = model.SongStatusError
	song.ErrorMessage = cause.Error()
	song.UpdatedAt = time.Now()
	if err := w.store.SaveSong(ctx, song); err != nil {
		log.Printf("[Generate] failed to mark song %s as error: %v", song.ID, err)
	}
	w.broadcast(model.EventGenerationUpdate, map[string]interface{}{
		"song_id": song.ID,
		"status":  string(model.SongStatusError),
		"error":   cause.Error(),
	})
}

func (w *GenerateWorker) broadcast(event string, data interface{}) {
	if w.notifier != nil {
		w.notifier.BroadcastEvent(event, data)
	}
}

// intSetting reads a runtime-tunable integer setting, falling back to
// the configured default.
func (w *GenerateWorker) intSetting(ctx context.Context, key string, fallback int) int {
	val, err := w.store.GetSetting(ctx, key)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
