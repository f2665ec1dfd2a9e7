package store

import (
	"context"
	"sync"

	"github.com/serkansmg/SunoApiManager/internal/model"
)

// MemoryStore implements Store in process memory. Used by tests and as
// a fallback when Redis is not configured.
type MemoryStore struct {
	mu        sync.RWMutex
	songs     map[string]*model.Song
	songOrder []string
	gens      map[string]*model.Generation
	genOrder  []string
	settings  map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		songs:    make(map[string]*model.Song),
		gens:     make(map[string]*model.Generation),
		settings: make(map[string]string),
	}
}

func (s *MemoryStore) SaveSong(ctx context.Context, song *model.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.songs[song.ID]; !exists {
		s.songOrder = append(s.songOrder, song.ID)
	}
	clone := *song
	s.songs[song.ID] = &clone
	return nil
}

func (s *MemoryStore) GetSong(ctx context.Context, id string) (*model.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	song, ok := s.songs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *song
	return &clone, nil
}

func (s *MemoryStore) ListSongs(ctx context.Context) ([]*model.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Song, 0, len(s.songOrder))
	for _, id := range s.songOrder {
		if song, ok := s.songs[id]; ok {
			clone := *song
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetPendingSongs(ctx context.Context) ([]*model.Song, error) {
	songs, _ := s.ListSongs(ctx)
	pending := make([]*model.Song, 0, len(songs))
	for _, song := range songs {
		if song.Status == model.SongStatusPending {
			pending = append(pending, song)
		}
	}
	return pending, nil
}

func (s *MemoryStore) DeleteSong(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.songs, id)
	for i, sid := range s.songOrder {
		if sid == id {
			s.songOrder = append(s.songOrder[:i], s.songOrder[i+1:]...)
			break
		}
	}
	for sunoID, gen := range s.gens {
		if gen.SongID == id {
			delete(s.gens, sunoID)
			for i, gid := range s.genOrder {
				if gid == sunoID {
					s.genOrder = append(s.genOrder[:i], s.genOrder[i+1:]...)
					break
				}
			}
		}
	}
	return nil
}

func (s *MemoryStore) SaveGeneration(ctx context.Context, gen *model.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.gens[gen.SunoID]; !exists {
		s.genOrder = append(s.genOrder, gen.SunoID)
	}
	clone := *gen
	s.gens[gen.SunoID] = &clone
	return nil
}

func (s *MemoryStore) GetGeneration(ctx context.Context, sunoID string) (*model.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gen, ok := s.gens[sunoID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *gen
	return &clone, nil
}

func (s *MemoryStore) ListGenerations(ctx context.Context) ([]*model.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Generation, 0, len(s.genOrder))
	for _, id := range s.genOrder {
		if gen, ok := s.gens[id]; ok {
			clone := *gen
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetGenerationsBySong(ctx context.Context, songID string) ([]*model.Generation, error) {
	gens, _ := s.ListGenerations(ctx)
	out := make([]*model.Generation, 0, len(gens))
	for _, gen := range gens {
		if gen.SongID == songID {
			out = append(out, gen)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetIncompleteGenerations(ctx context.Context) ([]*model.Generation, error) {
	gens, _ := s.ListGenerations(ctx)
	out := make([]*model.Generation, 0, len(gens))
	for _, gen := range gens {
		if !model.IsTerminalGenStatus(gen.SunoStatus) {
			out = append(out, gen)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetDownloadableGenerations(ctx context.Context, minDuration float64) ([]*model.Generation, error) {
	gens, _ := s.ListGenerations(ctx)
	out := make([]*model.Generation, 0, len(gens))
	for _, gen := range gens {
		if downloadable(gen, minDuration) {
			out = append(out, gen)
		}
	}
	return out, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*model.Stats, error) {
	songs, _ := s.ListSongs(ctx)
	gens, _ := s.ListGenerations(ctx)
	return computeStats(songs, gens), nil
}

func (s *MemoryStore) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (s *MemoryStore) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *MemoryStore) AllSettings(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}
