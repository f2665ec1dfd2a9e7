package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/serkansmg/SunoApiManager/internal/config"
	"github.com/serkansmg/SunoApiManager/internal/store"
)

// SettingsService manages the runtime-tunable knobs. Values live in
// the store so the UI can change them without a restart; config only
// seeds the first boot.
type SettingsService struct {
	store store.Store
}

func NewSettingsService(st store.Store) *SettingsService {
	return &SettingsService{store: st}
}

// validators check a raw value for each known key.
var validators = map[string]func(string) error{
	"batch_size":           positiveInt,
	"batch_delay":          nonNegativeInt,
	"polling_interval":     positiveInt,
	"min_duration_filter":  nonNegativeFloat,
	"auto_download":        boolValue,
	"auto_analyze_silence": boolValue,
	"download_format":      formatValue,
}

// SeedDefaults writes config values for any setting not yet present.
func (s *SettingsService) SeedDefaults(ctx context.Context, gen config.GenerationConfig, dl config.DownloadConfig) error {
	defaults := map[string]string{
		"batch_size":           strconv.Itoa(gen.BatchSize),
		"batch_delay":          strconv.Itoa(gen.BatchDelay),
		"polling_interval":     strconv.Itoa(gen.PollingInterval),
		"min_duration_filter":  strconv.FormatFloat(gen.MinDurationFilter, 'f', -1, 64),
		"auto_download":        strconv.FormatBool(gen.AutoDownload),
		"auto_analyze_silence": strconv.FormatBool(gen.AutoAnalyze),
		"download_format":      dl.Format,
	}
	for key, value := range defaults {
		if _, err := s.store.GetSetting(ctx, key); err == store.ErrNotFound {
			if err := s.store.SetSetting(ctx, key, value); err != nil {
				return fmt.Errorf("failed to seed %s: %w", key, err)
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

// Get returns one setting value.
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	if _, ok := validators[key]; !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	return s.store.GetSetting(ctx, key)
}

// Set validates and stores one setting value.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	validate, ok := validators[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	if err := validate(value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return s.store.SetSetting(ctx, key, value)
}

// All returns every stored setting.
func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	return s.store.AllSettings(ctx)
}

func positiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1")
	}
	return nil
}

func nonNegativeInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func nonNegativeFloat(v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	if f < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func boolValue(v string) error {
	_, err := strconv.ParseBool(v)
	return err
}

func formatValue(v string) error {
	switch v {
	case "mp3", "wav", "both":
		return nil
	}
	return fmt.Errorf("must be mp3, wav or both")
}
