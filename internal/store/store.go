package store

import (
	"context"
	"errors"

	"github.com/serkansmg/SunoApiManager/internal/model"
)

// ErrNotFound is returned when a song or generation does not exist.
var ErrNotFound = errors.New("not found")

// Store persists songs, their generations and runtime settings.
// Listing methods return records in insertion order, which the
// scheduler relies on for submission ordering.
type Store interface {
	SaveSong(ctx context.Context, song *model.Song) error
	GetSong(ctx context.Context, id string) (*model.Song, error)
	ListSongs(ctx context.Context) ([]*model.Song, error)
	GetPendingSongs(ctx context.Context) ([]*model.Song, error)
	DeleteSong(ctx context.Context, id string) error

	SaveGeneration(ctx context.Context, gen *model.Generation) error
	GetGeneration(ctx context.Context, sunoID string) (*model.Generation, error)
	ListGenerations(ctx context.Context) ([]*model.Generation, error)
	GetGenerationsBySong(ctx context.Context, songID string) ([]*model.Generation, error)
	GetIncompleteGenerations(ctx context.Context) ([]*model.Generation, error)
	GetDownloadableGenerations(ctx context.Context, minDuration float64) ([]*model.Generation, error)

	Stats(ctx context.Context) (*model.Stats, error)

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	AllSettings(ctx context.Context) (map[string]string, error)
}

// downloadable reports whether a generation qualifies for download:
// finished on the remote side, not yet fetched, has an audio URL and
// meets the duration floor.
func downloadable(gen *model.Generation, minDuration float64) bool {
	if gen.SunoStatus != model.GenStatusComplete || gen.Downloaded {
		return false
	}
	if gen.AudioURL == "" {
		return false
	}
	return gen.Duration >= minDuration
}
