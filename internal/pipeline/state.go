package pipeline

import (
	"github.com/meetscribe/meetscribe/internal/models"
)

// MaxStageAttempts is the retry budget per stage. Once a stage has failed
// this many times the run is permanently failed and needs operator action.
const MaxStageAttempts = 3

// startableStatuses are the statuses a start request may transition out
// of. Failed states are startable so a retry does not require re-upload.
var startableStatuses = []string{
	models.StatusQueued,
	models.StatusTranscriptionFailed,
	models.StatusExtractionFailed,
}

// StartableStatuses returns the statuses eligible for a start request.
func StartableStatuses() []string {
	out := make([]string, len(startableStatuses))
	copy(out, startableStatuses)
	return out
}

// IsActive reports whether a run is currently in flight.
func IsActive(status string) bool {
	return status == models.StatusTranscribing ||
		status == models.StatusTranscribed ||
		status == models.StatusExtracting
}

// IsFailed reports whether status is one of the failure sub-states.
func IsFailed(status string) bool {
	return status == models.StatusTranscriptionFailed ||
		status == models.StatusExtractionFailed
}

// CanRetry reports whether a failed run still has attempt budget for the
// stage that failed.
func CanRetry(st *models.PipelineState) bool {
	switch st.Status {
	case models.StatusTranscriptionFailed:
		return st.TranscribeAttempts < MaxStageAttempts
	case models.StatusExtractionFailed:
		return st.ExtractAttempts < MaxStageAttempts
	}
	return false
}

// startRejection maps the observed state of an ineligible run to the
// rejection a start request must surface. Returns nil when the state is
// in fact startable.
func startRejection(st *models.PipelineState) *Error {
	switch {
	case st.Status == models.StatusCompleted:
		return NewError(KindAlreadyCompleted, "recording %s has already been processed", st.RecordingID)
	case IsActive(st.Status):
		return NewError(KindPipelineBusy, "a pipeline run is already active for recording %s", st.RecordingID)
	case IsFailed(st.Status) && !CanRetry(st):
		return NewError(KindRetryBudgetExhausted, "recording %s failed permanently after %d attempts", st.RecordingID, MaxStageAttempts)
	}
	return nil
}
