package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/serkansmg/SunoApiManager/internal/client"
	"github.com/serkansmg/SunoApiManager/internal/config"
	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/internal/store"
	"github.com/serkansmg/SunoApiManager/internal/worker"
)

// DownloadService queues clip downloads. It is the DownloadEnqueuer
// used by the reconcile loop.
type DownloadService struct {
	store       store.Store
	asynqClient *asynq.Client
	suno        *client.SunoClient
	cfg         config.GenerationConfig
}

func NewDownloadService(st store.Store, asynqClient *asynq.Client, suno *client.SunoClient, cfg config.GenerationConfig) *DownloadService {
	return &DownloadService{
		store:       st,
		asynqClient: asynqClient,
		suno:        suno,
		cfg:         cfg,
	}
}

// EnqueueDownload queues one clip for the download pipeline.
func (s *DownloadService) EnqueueDownload(ctx context.Context, sunoID string) error {
	return s.enqueue(ctx, sunoID, false, "")
}

// Redownload clears a clip's audio and fetches it again. format, when
// non-empty, overrides the download_format setting for this clip.
func (s *DownloadService) Redownload(ctx context.Context, sunoID, format string) error {
	switch format {
	case "", "mp3", "wav", "both":
	default:
		return fmt.Errorf("invalid format %q: must be mp3, wav or both", format)
	}
	if _, err := s.store.GetGeneration(ctx, sunoID); err != nil {
		return err
	}
	return s.enqueue(ctx, sunoID, true, format)
}

func (s *DownloadService) enqueue(ctx context.Context, sunoID string, redownload bool, format string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"sunoId":     sunoID,
		"redownload": redownload,
		"format":     format,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(worker.TaskTypeDownloadClip, payload)
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("download"),
		asynq.MaxRetry(2),
		asynq.Timeout(15*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue download: %w", err)
	}
	return nil
}

// DownloadCompleted queues every completed, not-yet-downloaded clip
// that passes the duration floor. Returns how many were queued.
func (s *DownloadService) DownloadCompleted(ctx context.Context) (int, error) {
	minDuration := s.cfg.MinDurationFilter
	if val, err := s.store.GetSetting(ctx, "min_duration_filter"); err == nil {
		if f, perr := strconv.ParseFloat(val, 64); perr == nil {
			minDuration = f
		}
	}

	gens, err := s.store.GetDownloadableGenerations(ctx, minDuration)
	if err != nil {
		return 0, fmt.Errorf("failed to load downloadable generations: %w", err)
	}

	queued := 0
	for _, gen := range gens {
		if err := s.EnqueueDownload(ctx, gen.SunoID); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// ImportFromHistory pulls one page of the remote library, registers
// unknown completed clips locally and queues them for download.
// Returns how many clips were imported.
func (s *DownloadService) ImportFromHistory(ctx context.Context, page int) (int, error) {
	feed, err := s.suno.GetFeedPage(ctx, page)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch history page %d: %w", page, err)
	}

	imported := 0
	now := time.Now()
	for _, clip := range feed.Clips {
		if clip.Status != model.GenStatusComplete || clip.AudioURL == "" {
			continue
		}
		if _, err := s.store.GetGeneration(ctx, clip.ID); err == nil {
			continue // already tracked
		}

		song := &model.Song{
			ID:        uuid.New().String(),
			Title:     clip.Title,
			Lyrics:    clip.Lyric,
			Tags:      clip.Tags,
			Model:     clip.ModelName,
			Status:    model.SongStatusComplete,
			BatchName: fmt.Sprintf("history-page-%d", page),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.SaveSong(ctx, song); err != nil {
			return imported, fmt.Errorf("failed to save history song: %w", err)
		}

		gen := &model.Generation{
			SongID:     song.ID,
			SunoID:     clip.ID,
			AudioURL:   clip.AudioURL,
			ImageURL:   clip.ImageURL,
			VideoURL:   clip.VideoURL,
			Duration:   clip.Duration,
			SunoStatus: clip.Status,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.SaveGeneration(ctx, gen); err != nil {
			return imported, fmt.Errorf("failed to save history generation: %w", err)
		}

		if err := s.EnqueueDownload(ctx, clip.ID); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
