package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/serkansmg/SunoApiManager/internal/model"
)

const (
	songKeyFmt   = "song:%s"
	songIndexKey = "songs:index"
	genKeyFmt    = "gen:%s"
	genIndexKey  = "gens:index"
	genBySongFmt = "gens:by_song:%s"
	settingsKey  = "settings"
)

// RedisStore implements Store on Redis. Records are JSON blobs under
// per-id keys; sorted-set indexes keep insertion order.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func (s *RedisStore) SaveSong(ctx context.Context, song *model.Song) error {
	data, err := json.Marshal(song)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(songKeyFmt, song.ID), data, 0)
	pipe.ZAddNX(ctx, songIndexKey, redis.Z{
		Score:  float64(song.CreatedAt.UnixNano()),
		Member: song.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetSong(ctx context.Context, id string) (*model.Song, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf(songKeyFmt, id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var song model.Song
	if err := json.Unmarshal(data, &song); err != nil {
		return nil, err
	}
	return &song, nil
}

func (s *RedisStore) ListSongs(ctx context.Context) ([]*model.Song, error) {
	ids, err := s.redis.ZRange(ctx, songIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	songs := make([]*model.Song, 0, len(ids))
	for _, id := range ids {
		song, err := s.GetSong(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, nil
}

func (s *RedisStore) GetPendingSongs(ctx context.Context) ([]*model.Song, error) {
	songs, err := s.ListSongs(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]*model.Song, 0, len(songs))
	for _, song := range songs {
		if song.Status == model.SongStatusPending {
			pending = append(pending, song)
		}
	}
	return pending, nil
}

func (s *RedisStore) DeleteSong(ctx context.Context, id string) error {
	gens, err := s.GetGenerationsBySong(ctx, id)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	for _, gen := range gens {
		pipe.Del(ctx, fmt.Sprintf(genKeyFmt, gen.SunoID))
		pipe.ZRem(ctx, genIndexKey, gen.SunoID)
	}
	pipe.Del(ctx, fmt.Sprintf(genBySongFmt, id))
	pipe.Del(ctx, fmt.Sprintf(songKeyFmt, id))
	pipe.ZRem(ctx, songIndexKey, id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) SaveGeneration(ctx context.Context, gen *model.Generation) error {
	data, err := json.Marshal(gen)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(genKeyFmt, gen.SunoID), data, 0)
	pipe.ZAddNX(ctx, genIndexKey, redis.Z{
		Score:  float64(gen.CreatedAt.UnixNano()),
		Member: gen.SunoID,
	})
	if gen.SongID != "" {
		pipe.SAdd(ctx, fmt.Sprintf(genBySongFmt, gen.SongID), gen.SunoID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetGeneration(ctx context.Context, sunoID string) (*model.Generation, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf(genKeyFmt, sunoID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var gen model.Generation
	if err := json.Unmarshal(data, &gen); err != nil {
		return nil, err
	}
	return &gen, nil
}

func (s *RedisStore) ListGenerations(ctx context.Context) ([]*model.Generation, error) {
	ids, err := s.redis.ZRange(ctx, genIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	gens := make([]*model.Generation, 0, len(ids))
	for _, id := range ids {
		gen, err := s.GetGeneration(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		gens = append(gens, gen)
	}
	return gens, nil
}

func (s *RedisStore) GetGenerationsBySong(ctx context.Context, songID string) ([]*model.Generation, error) {
	ids, err := s.redis.SMembers(ctx, fmt.Sprintf(genBySongFmt, songID)).Result()
	if err != nil {
		return nil, err
	}
	gens := make([]*model.Generation, 0, len(ids))
	for _, id := range ids {
		gen, err := s.GetGeneration(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		gens = append(gens, gen)
	}
	return gens, nil
}

func (s *RedisStore) GetIncompleteGenerations(ctx context.Context) ([]*model.Generation, error) {
	gens, err := s.ListGenerations(ctx)
	if err != nil {
		return nil, err
	}
	incomplete := make([]*model.Generation, 0, len(gens))
	for _, gen := range gens {
		if !model.IsTerminalGenStatus(gen.SunoStatus) {
			incomplete = append(incomplete, gen)
		}
	}
	return incomplete, nil
}

func (s *RedisStore) GetDownloadableGenerations(ctx context.Context, minDuration float64) ([]*model.Generation, error) {
	gens, err := s.ListGenerations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Generation, 0, len(gens))
	for _, gen := range gens {
		if downloadable(gen, minDuration) {
			out = append(out, gen)
		}
	}
	return out, nil
}

func (s *RedisStore) Stats(ctx context.Context) (*model.Stats, error) {
	songs, err := s.ListSongs(ctx)
	if err != nil {
		return nil, err
	}
	gens, err := s.ListGenerations(ctx)
	if err != nil {
		return nil, err
	}
	return computeStats(songs, gens), nil
}

func (s *RedisStore) GetSetting(ctx context.Context, key string) (string, error) {
	val, err := s.redis.HGet(ctx, settingsKey, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrNotFound
		}
		return "", err
	}
	return val, nil
}

func (s *RedisStore) SetSetting(ctx context.Context, key, value string) error {
	return s.redis.HSet(ctx, settingsKey, key, value).Err()
}

func (s *RedisStore) AllSettings(ctx context.Context) (map[string]string, error) {
	return s.redis.HGetAll(ctx, settingsKey).Result()
}

// computeStats tallies the dashboard counters.
func computeStats(songs []*model.Song, gens []*model.Generation) *model.Stats {
	stats := &model.Stats{TotalSongs: len(songs), TotalGens: len(gens)}
	for _, song := range songs {
		switch song.Status {
		case model.SongStatusComplete:
			stats.CompletedSongs++
		case model.SongStatusSubmitted:
			stats.ProcessingSong++
		case model.SongStatusPending:
			stats.PendingSongs++
		case model.SongStatusError:
			stats.ErrorSongs++
		}
	}
	for _, gen := range gens {
		switch gen.SunoStatus {
		case model.GenStatusComplete:
			stats.CompletedGens++
		case model.GenStatusError:
			stats.ErrorGens++
		default:
			stats.ProcessingGens++
		}
	}
	return stats
}
