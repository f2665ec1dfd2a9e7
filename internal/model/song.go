package model

import "time"

// SongStatus is the lifecycle state of a locally tracked song.
type SongStatus string

const (
	SongStatusPending   SongStatus = "pending"
	SongStatusSubmitted SongStatus = "submitted"
	SongStatusComplete  SongStatus = "complete"
	SongStatusError     SongStatus = "error"
)

// Generation statuses reported by Suno for a clip. Anything outside
// complete/error is considered in-flight.
const (
	GenStatusSubmitted = "submitted"
	GenStatusQueued    = "queued"
	GenStatusStreaming = "streaming"
	GenStatusComplete  = "complete"
	GenStatusError     = "error"
)

// Song is a local generation request: title, lyrics and style tags that
// will be submitted to Suno as a custom generation.
type Song struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Lyrics           string     `json:"lyrics"`
	Tags             string     `json:"tags"`
	NegativeTags     string     `json:"negativeTags"`
	MakeInstrumental bool       `json:"makeInstrumental"`
	Model            string     `json:"model"`
	Status           SongStatus `json:"status"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
	BatchName        string     `json:"batchName,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// IsTerminalGenStatus reports whether a Suno clip status is final.
func IsTerminalGenStatus(status string) bool {
	return status == GenStatusComplete || status == GenStatusError
}

// Generation is one remote clip produced for a Song. Suno returns
// multiple candidate clips per submission, so a Song owns 0..N of these.
// SunoID is globally unique.
type Generation struct {
	SongID       string    `json:"songId"`
	SunoID       string    `json:"sunoId"`
	AudioURL     string    `json:"audioUrl,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	VideoURL     string    `json:"videoUrl,omitempty"`
	Duration     float64   `json:"duration,omitempty"`
	SunoStatus   string    `json:"sunoStatus"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Downloaded   bool      `json:"downloaded"`
	FilePath     string    `json:"filePath,omitempty"`
	HasSilence   *bool     `json:"hasSilence,omitempty"`
	SilenceJSON  string    `json:"silenceDetails,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SaveSongsRequest creates a batch of pending songs.
type SaveSongsRequest struct {
	BatchName string      `json:"batchName"`
	Songs     []SongInput `json:"songs" validate:"required,min=1,dive"`
}

// SongInput is one row of a save request.
type SongInput struct {
	Title            string `json:"title" validate:"required"`
	Lyrics           string `json:"lyrics" validate:"required"`
	Tags             string `json:"tags"`
	NegativeTags     string `json:"negativeTags"`
	MakeInstrumental bool   `json:"makeInstrumental"`
	Model            string `json:"model"`
}

// SaveSongsResponse reports what a save created.
type SaveSongsResponse struct {
	Saved     int      `json:"saved"`
	BatchName string   `json:"batchName"`
	IDs       []string `json:"ids"`
}

// StartGenerationResponse reports a queued generation batch.
type StartGenerationResponse struct {
	Message    string `json:"message"`
	Count      int    `json:"count"`
	BatchSize  int    `json:"batchSize"`
	BatchCount int    `json:"batchCount"`
}

// PollStatusResponse summarizes one reconcile pass.
type PollStatusResponse struct {
	Message         string   `json:"message"`
	Updated         int      `json:"updated"`
	UpdatedSongIDs  []string `json:"updatedSongIds"`
	AutoDownload    int      `json:"autoDownload"`
	AutoDownloadIDs []string `json:"autoDownloadSunoIds"`
}

// Stats is the dashboard counter set.
type Stats struct {
	TotalSongs     int `json:"total"`
	CompletedSongs int `json:"completed"`
	ProcessingSong int `json:"processing"`
	PendingSongs   int `json:"pending"`
	ErrorSongs     int `json:"errors"`
	TotalGens      int `json:"totalGens"`
	CompletedGens  int `json:"completedGens"`
	ProcessingGens int `json:"processingGens"`
	ErrorGens      int `json:"errorGens"`
}
