package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/serkansmg/SunoApiManager/internal/config"
	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/internal/store"
	"github.com/serkansmg/SunoApiManager/internal/worker"
)

// GenerationService starts batch runs and exposes on-demand
// reconciliation.
type GenerationService struct {
	store       store.Store
	asynqClient *asynq.Client
	poller      *worker.PollWorker
	cfg         config.GenerationConfig
}

func NewGenerationService(st store.Store, asynqClient *asynq.Client, poller *worker.PollWorker, cfg config.GenerationConfig) *GenerationService {
	return &GenerationService{
		store:       st,
		asynqClient: asynqClient,
		poller:      poller,
		cfg:         cfg,
	}
}

// StartGeneration queues a batch run over all pending songs.
func (s *GenerationService) StartGeneration(ctx context.Context) (*model.StartGenerationResponse, error) {
	pending, err := s.store.GetPendingSongs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending songs: %w", err)
	}
	if len(pending) == 0 {
		return nil, fmt.Errorf("no pending songs to generate")
	}

	batchSize := s.cfg.BatchSize
	if val, err := s.store.GetSetting(ctx, "batch_size"); err == nil {
		if n, perr := strconv.Atoi(val); perr == nil && n > 0 {
			batchSize = n
		}
	}

	task := asynq.NewTask(worker.TaskTypeGenerateBatch, nil)
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("generation"),
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Hour),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue batch: %w", err)
	}

	batchCount := (len(pending) + batchSize - 1) / batchSize
	return &model.StartGenerationResponse{
		Message:    "generation started",
		Count:      len(pending),
		BatchSize:  batchSize,
		BatchCount: batchCount,
	}, nil
}

// PollNow runs one reconcile pass immediately.
func (s *GenerationService) PollNow(ctx context.Context) (*model.PollStatusResponse, error) {
	return s.poller.ReconcileOnce(ctx)
}

// ListGenerations returns all generation records.
func (s *GenerationService) ListGenerations(ctx context.Context) ([]*model.Generation, error) {
	return s.store.ListGenerations(ctx)
}

// GetGeneration returns one generation by clip id.
func (s *GenerationService) GetGeneration(ctx context.Context, sunoID string) (*model.Generation, error) {
	return s.store.GetGeneration(ctx, sunoID)
}
