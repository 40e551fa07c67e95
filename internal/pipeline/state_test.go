package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meetscribe/meetscribe/internal/models"
)

func TestCanRetry(t *testing.T) {
	tests := []struct {
		name string
		st   models.PipelineState
		want bool
	}{
		{
			name: "transcription failure with budget left",
			st:   models.PipelineState{Status: models.StatusTranscriptionFailed, TranscribeAttempts: 1},
			want: true,
		},
		{
			name: "transcription budget spent",
			st:   models.PipelineState{Status: models.StatusTranscriptionFailed, TranscribeAttempts: MaxStageAttempts},
			want: false,
		},
		{
			name: "extraction failure with budget left",
			st:   models.PipelineState{Status: models.StatusExtractionFailed, ExtractAttempts: 2},
			want: true,
		},
		{
			name: "extraction budget spent",
			st:   models.PipelineState{Status: models.StatusExtractionFailed, ExtractAttempts: MaxStageAttempts},
			want: false,
		},
		{
			name: "completed runs are never retryable",
			st:   models.PipelineState{Status: models.StatusCompleted},
			want: false,
		},
		{
			name: "active runs are never retryable",
			st:   models.PipelineState{Status: models.StatusExtracting},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanRetry(&tt.st))
		})
	}
}

func TestStartRejection(t *testing.T) {
	tests := []struct {
		name     string
		st       models.PipelineState
		wantKind Kind
	}{
		{
			name:     "completed run",
			st:       models.PipelineState{RecordingID: "r1", Status: models.StatusCompleted},
			wantKind: KindAlreadyCompleted,
		},
		{
			name:     "transcribing run is busy",
			st:       models.PipelineState{RecordingID: "r1", Status: models.StatusTranscribing},
			wantKind: KindPipelineBusy,
		},
		{
			name:     "extracting run is busy",
			st:       models.PipelineState{RecordingID: "r1", Status: models.StatusExtracting},
			wantKind: KindPipelineBusy,
		},
		{
			name:     "exhausted transcription budget",
			st:       models.PipelineState{RecordingID: "r1", Status: models.StatusTranscriptionFailed, TranscribeAttempts: MaxStageAttempts},
			wantKind: KindRetryBudgetExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rej := startRejection(&tt.st)
			if assert.NotNil(t, rej) {
				assert.Equal(t, tt.wantKind, rej.Kind)
			}
		})
	}

	t.Run("startable states pass", func(t *testing.T) {
		assert.Nil(t, startRejection(&models.PipelineState{Status: models.StatusQueued}))
		assert.Nil(t, startRejection(&models.PipelineState{Status: models.StatusTranscriptionFailed, TranscribeAttempts: 1}))
		assert.Nil(t, startRejection(&models.PipelineState{Status: models.StatusExtractionFailed, ExtractAttempts: 2}))
	})
}

func TestStartableStatusesIsACopy(t *testing.T) {
	got := StartableStatuses()
	got[0] = "mutated"
	assert.Equal(t, models.StatusQueued, StartableStatuses()[0])
}
