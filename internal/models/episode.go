package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// EpisodeStatus represents the lifecycle status of an episode's video asset.
type EpisodeStatus string

const (
	// EpisodeStatusUploaded indicates the source file exists but no job has
	// been started for it.
	EpisodeStatusUploaded EpisodeStatus = "uploaded"
	// EpisodeStatusProcessing indicates a transcode job owns the episode.
	EpisodeStatusProcessing EpisodeStatus = "processing"
	// EpisodeStatusReady indicates the HLS package is complete and playable.
	EpisodeStatusReady EpisodeStatus = "ready"
	// EpisodeStatusError indicates the transcode job failed terminally.
	EpisodeStatusError EpisodeStatus = "error"
)

// IsTerminal returns true for ready and error.
func (s EpisodeStatus) IsTerminal() bool {
	return s == EpisodeStatusReady || s == EpisodeStatusError
}

// StringList stores a slice of strings as a JSON column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshaling string list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// Episode is the persistent record describing one video asset.
//
// The transcoding pipeline only ever touches the status-related columns:
// it marks the episode processing at intake, then writes exactly one
// terminal status (ready or error) as the last operation of the job.
type Episode struct {
	BaseModel

	// Title is a human-readable name for the asset.
	Title string `gorm:"size:255" json:"title,omitempty"`

	// SourcePath is the uploaded file on local disk. Cleared when the
	// source is deleted after a successful transcode.
	SourcePath string `gorm:"size:1024" json:"source_path,omitempty"`

	// Status is the asset lifecycle status.
	Status EpisodeStatus `gorm:"not null;default:'uploaded';size:20;index" json:"status"`

	// JobID is the handle of the transcode job currently or last processing
	// this episode.
	JobID string `gorm:"size:36;index" json:"job_id,omitempty"`

	// HLSURL is the public path to the master playlist once Status is ready.
	HLSURL string `gorm:"size:1024" json:"hls_url,omitempty"`

	// Qualities lists the names of the quality variants that transcoded
	// successfully, best first.
	Qualities StringList `gorm:"type:text" json:"qualities,omitempty"`

	// DurationSeconds is the probed source duration.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	// ErrorMessage holds the human-readable failure reason when Status is
	// error.
	ErrorMessage string `gorm:"size:1024" json:"error_message,omitempty"`
}

// TableName overrides the GORM table name.
func (Episode) TableName() string {
	return "episodes"
}
