package model

import "time"

// Progress phases for a clip moving through the download pipeline.
const (
	PhaseConverting   = "converting"
	PhaseDownloading  = "downloading"
	PhaseFetchingMeta = "fetching-metadata"
	PhaseAnalyzing    = "analyzing"
	PhaseComplete     = "complete"
	PhaseError        = "error"
)

// IndeterminateProgress marks progress with an unknown total.
const IndeterminateProgress = -1

// ProgressEvent is a fine-grained pipeline update keyed by clip id.
// Progress runs 0.0-1.0, or IndeterminateProgress when the total is
// unknown.
type ProgressEvent struct {
	SunoID    string    `json:"suno_id"`
	Status    string    `json:"status"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"-"`
}

// Terminal reports whether this event closes the subject's stream.
func (e ProgressEvent) Terminal() bool {
	return e.Status == PhaseComplete || e.Status == PhaseError
}

// WebSocket event names pushed to observers.
const (
	EventProgress         = "progress"
	EventGenerationUpdate = "generation_update"
	EventGenerationBatch  = "generation_batch"
	EventCaptchaUpdate    = "captcha_update"
)

// SilenceSegment is one detected silent gap.
type SilenceSegment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// SilenceAnalysis is the analyzer collaborator's structured result.
type SilenceAnalysis struct {
	HasSilence      *bool            `json:"has_silence"`
	SilenceCount    int              `json:"silence_count"`
	TotalSilenceSec float64          `json:"total_silence_sec"`
	DurationSec     float64          `json:"duration_sec"`
	AvgDBFS         float64          `json:"avg_dbfs"`
	Details         []SilenceSegment `json:"details"`
	Error           string           `json:"error,omitempty"`
}
