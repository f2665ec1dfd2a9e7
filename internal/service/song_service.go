package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/serkansmg/SunoApiManager/internal/model"
	"github.com/serkansmg/SunoApiManager/internal/store"
)

// SongService handles the local song library.
type SongService struct {
	store store.Store
}

func NewSongService(st store.Store) *SongService {
	return &SongService{store: st}
}

// SaveSongs creates pending songs from a batch request.
func (s *SongService) SaveSongs(ctx context.Context, req *model.SaveSongsRequest) (*model.SaveSongsResponse, error) {
	batchName := req.BatchName
	if batchName == "" {
		batchName = "batch-" + time.Now().Format("20060102-150405")
	}

	now := time.Now()
	ids := make([]string, 0, len(req.Songs))
	for i, input := range req.Songs {
		song := &model.Song{
			ID:               uuid.New().String(),
			Title:            input.Title,
			Lyrics:           input.Lyrics,
			Tags:             input.Tags,
			NegativeTags:     input.NegativeTags,
			MakeInstrumental: input.MakeInstrumental,
			Model:            input.Model,
			Status:           model.SongStatusPending,
			BatchName:        batchName,
			// Preserve request order for the scheduler.
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			UpdatedAt: now,
		}
		if err := s.store.SaveSong(ctx, song); err != nil {
			return nil, fmt.Errorf("failed to save song %q: %w", input.Title, err)
		}
		ids = append(ids, song.ID)
	}

	return &model.SaveSongsResponse{
		Saved:     len(ids),
		BatchName: batchName,
		IDs:       ids,
	}, nil
}

// ListSongs returns the whole library in insertion order.
func (s *SongService) ListSongs(ctx context.Context) ([]*model.Song, error) {
	return s.store.ListSongs(ctx)
}

// SongDetail is a song with its generations attached.
type SongDetail struct {
	Song        *model.Song         `json:"song"`
	Generations []*model.Generation `json:"generations"`
}

// GetSong returns one song and its generations.
func (s *SongService) GetSong(ctx context.Context, id string) (*SongDetail, error) {
	song, err := s.store.GetSong(ctx, id)
	if err != nil {
		return nil, err
	}
	gens, err := s.store.GetGenerationsBySong(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SongDetail{Song: song, Generations: gens}, nil
}

// DeleteSong removes a song, its generations and any downloaded files.
func (s *SongService) DeleteSong(ctx context.Context, id string) error {
	if _, err := s.store.GetSong(ctx, id); err != nil {
		return err
	}

	gens, err := s.store.GetGenerationsBySong(ctx, id)
	if err != nil {
		return err
	}
	for _, gen := range gens {
		if gen.FilePath == "" {
			continue
		}
		dir := filepath.Dir(gen.FilePath)
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("[Songs] ✗ failed to remove %s: %v", dir, err)
		}
	}

	return s.store.DeleteSong(ctx, id)
}

// RetrySong puts an errored song back into the pending queue.
func (s *SongService) RetrySong(ctx context.Context, id string) (*model.Song, error) {
	song, err := s.store.GetSong(ctx, id)
	if err != nil {
		return nil, err
	}
	if song.Status != model.SongStatusError {
		return nil, fmt.Errorf("song %s is not in error state", id)
	}
	song.Status = model.SongStatusPending
	song.ErrorMessage = ""
	song.UpdatedAt = time.Now()
	if err := s.store.SaveSong(ctx, song); err != nil {
		return nil, err
	}
	return song, nil
}

// RetryAllFailed resets every errored song to pending. Returns how
// many were reset.
func (s *SongService) RetryAllFailed(ctx context.Context) (int, error) {
	songs, err := s.store.ListSongs(ctx)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, song := range songs {
		if song.Status != model.SongStatusError {
			continue
		}
		song.Status = model.SongStatusPending
		song.ErrorMessage = ""
		song.UpdatedAt = time.Now()
		if err := s.store.SaveSong(ctx, song); err != nil {
			return reset, fmt.Errorf("failed to reset song %s: %w", song.ID, err)
		}
		reset++
	}
	return reset, nil
}

// Stats returns the dashboard counters.
func (s *SongService) Stats(ctx context.Context) (*model.Stats, error) {
	return s.store.Stats(ctx)
}
