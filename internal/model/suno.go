package model

// AudioInfo is the flattened view of a Suno clip used across the API.
type AudioInfo struct {
	ID             string  `json:"id"`
	Title          string  `json:"title,omitempty"`
	ImageURL       string  `json:"image_url,omitempty"`
	AudioURL       string  `json:"audio_url,omitempty"`
	VideoURL       string  `json:"video_url,omitempty"`
	Status         string  `json:"status"`
	Duration       float64 `json:"duration,omitempty"`
	ModelName      string  `json:"model_name,omitempty"`
	Tags           string  `json:"tags,omitempty"`
	Prompt         string  `json:"prompt,omitempty"`
	GPTDescription string  `json:"gpt_description_prompt,omitempty"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	CreatedAt      string  `json:"created_at,omitempty"`
	Lyric          string  `json:"lyric,omitempty"`
}

// GenerateRequest is the simple generation mode: describe the music,
// Suno writes the lyrics.
type GenerateRequest struct {
	Prompt           string `json:"prompt" validate:"required"`
	MakeInstrumental bool   `json:"make_instrumental"`
	Model            string `json:"model"`
}

// CustomGenerateRequest is the custom mode: full lyrics, style tags and
// a title.
type CustomGenerateRequest struct {
	Prompt           string `json:"prompt" validate:"required"`
	Tags             string `json:"tags" validate:"required"`
	Title            string `json:"title" validate:"required"`
	NegativeTags     string `json:"negative_tags"`
	MakeInstrumental bool   `json:"make_instrumental"`
	Model            string `json:"model"`
}

// ExtendAudioRequest continues an existing clip from a timestamp.
type ExtendAudioRequest struct {
	AudioID      string  `json:"audio_id" validate:"required"`
	Prompt       string  `json:"prompt"`
	ContinueAt   float64 `json:"continue_at"`
	Tags         string  `json:"tags"`
	NegativeTags string  `json:"negative_tags"`
	Title        string  `json:"title"`
	Model        string  `json:"model"`
}

// ConcatRequest stitches extension clips into one complete song.
type ConcatRequest struct {
	ClipID string `json:"clip_id" validate:"required"`
}

// LyricsRequest generates lyrics from a natural-language prompt.
type LyricsRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// LyricsResponse is a completed lyric generation.
type LyricsResponse struct {
	ID     string `json:"id,omitempty"`
	Text   string `json:"text"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// CreditsInfo summarizes account billing.
type CreditsInfo struct {
	CreditsLeft  int    `json:"credits_left"`
	Period       string `json:"period,omitempty"`
	MonthlyLimit int    `json:"monthly_limit,omitempty"`
	MonthlyUsage int    `json:"monthly_usage,omitempty"`
}

// FeedPage is one page of the remote library.
type FeedPage struct {
	Clips       []AudioInfo              `json:"clips"`
	RawClips    []map[string]interface{} `json:"raw_clips,omitempty"`
	NumTotal    int                      `json:"num_total"`
	CurrentPage int                      `json:"current_page"`
}

// WavURLResponse carries the WAV CDN URL; empty while conversion is
// still in progress.
type WavURLResponse struct {
	WavFileURL string `json:"wav_file_url,omitempty"`
}

// SunoModel describes one generation model from the billing catalog.
type SunoModel struct {
	ExternalKey     string   `json:"external_key"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	MajorVersion    int      `json:"major_version"`
	IsDefault       bool     `json:"is_default"`
	IsDefaultFree   bool     `json:"is_default_free"`
	Badges          []string `json:"badges"`
	CanUse          bool     `json:"can_use"`
	MaxPromptLength int      `json:"max_prompt_length"`
	MaxTagsLength   int      `json:"max_tags_length"`
	Capabilities    []string `json:"capabilities"`
	Features        []string `json:"features"`
}

// FallbackModels is served when the billing endpoint is unreachable.
var FallbackModels = []SunoModel{
	{ExternalKey: "chirp-crow", Name: "v5", Description: "Authentic vocals, superior audio quality", MajorVersion: 5, IsDefault: true, Badges: []string{"pro", "beta"}, CanUse: true, MaxPromptLength: 3000, MaxTagsLength: 200},
	{ExternalKey: "chirp-bluejay", Name: "v4.5+", Description: "Advanced creation methods", MajorVersion: 5, Badges: []string{"pro"}, CanUse: true, MaxPromptLength: 3000, MaxTagsLength: 200},
	{ExternalKey: "chirp-auk", Name: "v4.5", Description: "Intelligent prompts", MajorVersion: 5, Badges: []string{"pro"}, CanUse: true, MaxPromptLength: 3000, MaxTagsLength: 200},
	{ExternalKey: "chirp-auk-turbo", Name: "v4.5-all", Description: "Best free model", MajorVersion: 5, IsDefaultFree: true, CanUse: true, MaxPromptLength: 3000, MaxTagsLength: 200},
	{ExternalKey: "chirp-v4", Name: "v4", Description: "Improved sound quality", MajorVersion: 4, Badges: []string{"pro"}, CanUse: true, MaxPromptLength: 3000, MaxTagsLength: 200},
	{ExternalKey: "chirp-v3-5", Name: "v3.5", Description: "Basic song structure", MajorVersion: 3, CanUse: true, MaxPromptLength: 3000, MaxTagsLength: 200},
}
