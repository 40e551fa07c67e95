package pipeline

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/meetscribe/meetscribe/internal/models"
)

// ErrStateNotFound is returned when no pipeline state exists for a recording.
var ErrStateNotFound = errors.New("pipeline state not found")

// Ledger is the durable record of a recording's pipeline run. The
// orchestrator is the sole writer; status handlers read it.
type Ledger interface {
	Get(ctx context.Context, recordingID string) (*models.PipelineState, error)
	Create(ctx context.Context, st *models.PipelineState) error
	// TransitionStatus atomically moves the run from any of the given
	// statuses to the target status. It reports false when the current
	// status was not in the from set — the compare-and-swap that keeps
	// two concurrent start requests from double-processing a recording.
	TransitionStatus(ctx context.Context, recordingID string, from []string, to string) (bool, error)
	// Update applies field-scoped changes to the run record.
	Update(ctx context.Context, recordingID string, fields map[string]interface{}) error
}

// GormLedger implements Ledger on the pipeline_states table.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) Get(ctx context.Context, recordingID string) (*models.PipelineState, error) {
	var st models.PipelineState
	err := l.db.WithContext(ctx).
		Where("recording_id = ?", recordingID).
		First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to load pipeline state: %w", err)
	}
	return &st, nil
}

func (l *GormLedger) Create(ctx context.Context, st *models.PipelineState) error {
	if err := l.db.WithContext(ctx).Create(st).Error; err != nil {
		return fmt.Errorf("failed to create pipeline state: %w", err)
	}
	return nil
}

func (l *GormLedger) TransitionStatus(ctx context.Context, recordingID string, from []string, to string) (bool, error) {
	tx := l.db.WithContext(ctx).
		Model(&models.PipelineState{}).
		Where("recording_id = ? AND status IN ?", recordingID, from).
		Update("status", to)
	if tx.Error != nil {
		return false, fmt.Errorf("failed to transition status: %w", tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

func (l *GormLedger) Update(ctx context.Context, recordingID string, fields map[string]interface{}) error {
	err := l.db.WithContext(ctx).
		Model(&models.PipelineState{}).
		Where("recording_id = ?", recordingID).
		Updates(fields).Error
	if err != nil {
		return fmt.Errorf("failed to update pipeline state: %w", err)
	}
	return nil
}
