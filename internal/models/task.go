package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Task priority constants
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task category constants
const (
	CategoryWork          = "work"
	CategoryFollowUp      = "follow-up"
	CategoryCommunication = "communication"
	CategoryResearch      = "research"
	CategoryReview        = "review"
	CategoryPlanning      = "planning"
)

// Task status constants
const (
	TaskStatusPending = "pending"
)

// Task is an extracted follow-up item persisted as a first-class record.
// At most one row exists per (recording_id, normalized_title) so replaying
// extraction is idempotent.
type Task struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	RecordingID     string `gorm:"type:uuid;not null;uniqueIndex:idx_tasks_recording_title"`
	UserID          string `gorm:"type:uuid;not null;index"`
	Title           string `gorm:"size:500;not null"`
	NormalizedTitle string `gorm:"size:500;not null;uniqueIndex:idx_tasks_recording_title"`
	Description     string `gorm:"type:text"`
	Priority        string `gorm:"size:10;not null;default:'medium'"`
	Assignee        string `gorm:"size:100"`
	DueDate         *time.Time
	Category        string         `gorm:"size:20;not null;default:'work'"`
	Effort          int            `gorm:"not null;default:1"`
	Dependencies    datatypes.JSON `gorm:"type:jsonb"`
	Tags            datatypes.JSON `gorm:"type:jsonb"`
	Context         string         `gorm:"type:text"`
	Status          string         `gorm:"size:20;not null;default:'pending'"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
