package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meetscribe/meetscribe/internal/models"
)

// taskStore is the persistence boundary for materialized tasks. Inserts
// must honor the unique (recording_id, normalized_title) pair by skipping
// duplicates rather than failing.
type taskStore interface {
	insertIfAbsent(ctx context.Context, task *models.Task) error
	listByRecording(ctx context.Context, recordingID string) ([]models.Task, error)
}

// Materializer persists extracted task candidates as task rows. The
// unique (recording_id, normalized_title) pair makes replaying extraction
// after a partial pipeline failure safe: already-materialized candidates
// are skipped, not duplicated.
type Materializer struct {
	store taskStore
}

func NewMaterializer(db *gorm.DB) *Materializer {
	return &Materializer{store: &gormTaskStore{db: db}}
}

// Materialize inserts the candidates that are not yet present for the
// recording and returns the full materialized set.
func (m *Materializer) Materialize(ctx context.Context, recordingID, userID string, candidates []models.TaskCandidate) ([]models.Task, error) {
	for _, cand := range dedupeCandidates(candidates) {
		task := models.Task{
			ID:              uuid.NewString(),
			RecordingID:     recordingID,
			UserID:          userID,
			Title:           cand.Title,
			NormalizedTitle: NormalizeTitle(cand.Title),
			Description:     cand.Description,
			Priority:        cand.Priority,
			Assignee:        cand.Assignee,
			DueDate:         parseDueDate(cand.DueDate),
			Category:        cand.Category,
			Effort:          cand.Effort,
			Dependencies:    toJSON(cand.Dependencies),
			Tags:            toJSON(cand.Tags),
			Context:         cand.Context,
			Status:          models.TaskStatusPending,
		}

		if err := m.store.insertIfAbsent(ctx, &task); err != nil {
			return nil, fmt.Errorf("failed to materialize task %q: %w", cand.Title, err)
		}
	}

	out, err := m.store.listByRecording(ctx, recordingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list materialized tasks: %w", err)
	}
	return out, nil
}

// gormTaskStore implements taskStore on the tasks table.
type gormTaskStore struct {
	db *gorm.DB
}

func (s *gormTaskStore) insertIfAbsent(ctx context.Context, task *models.Task) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "recording_id"},
				{Name: "normalized_title"},
			},
			DoNothing: true,
		}).
		Create(task).Error
}

func (s *gormTaskStore) listByRecording(ctx context.Context, recordingID string) ([]models.Task, error) {
	var out []models.Task
	err := s.db.WithContext(ctx).
		Where("recording_id = ?", recordingID).
		Order("created_at, id").
		Find(&out).Error
	return out, err
}

// NormalizeTitle is the dedup key: case-folded, trimmed, with inner
// whitespace collapsed.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// dedupeCandidates removes within-batch duplicates and candidates with no
// usable title; the store's unique pair handles duplicates across runs.
func dedupeCandidates(candidates []models.TaskCandidate) []models.TaskCandidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]models.TaskCandidate, 0, len(candidates))
	for _, cand := range candidates {
		norm := NormalizeTitle(cand.Title)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, cand)
	}
	return out
}

func parseDueDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func toJSON(v []string) datatypes.JSON {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}
