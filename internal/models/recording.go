package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MinRecordingBytes is the smallest payload accepted for transcription.
// Anything below this is too small to be real audio.
const MinRecordingBytes = 1000

// supportedFormats is the transcription provider's media allow-list.
var supportedFormats = map[string]bool{
	"wav":  true,
	"mp3":  true,
	"mp4":  true,
	"m4a":  true,
	"webm": true,
	"ogg":  true,
	"flac": true,
}

// FormatSupported reports whether the declared media format can be transcribed.
func FormatSupported(format string) bool {
	return supportedFormats[format]
}

// Recording represents one uploaded meeting artifact. It is created by the
// upload collaborator and read-only to the pipeline.
type Recording struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	Title           string `gorm:"size:200;not null"`
	FilePath        string `gorm:"size:500;not null"` // local path or fetchable URL
	FileName        string `gorm:"size:200"`
	FileSize        int64  `gorm:"not null"`
	Format          string `gorm:"size:20;not null"`
	DurationSeconds *int
	UserID          string `gorm:"type:uuid;not null;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r *Recording) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
