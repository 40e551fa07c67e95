package models

import (
	"time"

	"gorm.io/datatypes"
)

// Pipeline status constants
const (
	StatusQueued              = "queued"
	StatusTranscribing        = "transcribing"
	StatusTranscribed         = "transcribed"
	StatusExtracting          = "extracting"
	StatusCompleted           = "completed"
	StatusTranscriptionFailed = "transcription_failed"
	StatusExtractionFailed    = "extraction_failed"
)

// PipelineState is the mutable processing record for a Recording, one-to-one.
// The orchestrator is its sole writer; polling clients read it for status.
type PipelineState struct {
	RecordingID string    `gorm:"type:uuid;primaryKey"`
	Recording   Recording `gorm:"constraint:OnDelete:CASCADE;"`
	Status      string    `gorm:"not null;default:'queued';index"`

	// Transcript is set once the run reaches transcribed. Timeline and
	// ExtractedTasks may be set partially when a later stage failed so a
	// retry can skip the work that already succeeded.
	Transcript     string         `gorm:"type:text"`
	Timeline       datatypes.JSON `gorm:"type:jsonb"`
	ExtractedTasks datatypes.JSON `gorm:"type:jsonb"`

	TranscribeAttempts int `gorm:"not null;default:0"`
	ExtractAttempts    int `gorm:"not null;default:0"`

	LastErrorKind    string `gorm:"size:50"`
	LastErrorMessage string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
