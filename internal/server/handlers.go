package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/meetscribe/meetscribe/internal/models"
	"github.com/meetscribe/meetscribe/internal/pipeline"
)

// Starter accepts pipeline start requests. Satisfied by the orchestrator.
type Starter interface {
	Start(ctx context.Context, recordingID, userID string) (*models.PipelineState, error)
}

// StartProcessingHandler accepts a start-run request and returns
// immediately with the accepted status or a rejection reason.
func StartProcessingHandler(starter Starter) gin.HandlerFunc {
	return func(c *gin.Context) {
		recordingID := c.Param("id")

		var body struct {
			UserID string `json:"user_id"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}

		st, err := starter.Start(c.Request.Context(), recordingID, body.UserID)
		if err != nil {
			status, kind, msg := rejectionResponse(err)
			c.JSON(status, gin.H{"error": msg, "kind": kind})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"recording_id": recordingID,
			"status":       st.Status,
		})
	}
}

// StatusHandler returns the polling contract: status, output presence,
// attempt counters, the last classified error verbatim, and whether a
// retry is currently permitted.
func StatusHandler(ledger pipeline.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		recordingID := c.Param("id")

		st, err := ledger.Get(c.Request.Context(), recordingID)
		if err != nil {
			if errors.Is(err, pipeline.ErrStateNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no pipeline run found for recording"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pipeline state"})
			return
		}

		resp := gin.H{
			"recording_id":        st.RecordingID,
			"status":              st.Status,
			"has_transcript":      st.Transcript != "",
			"transcript_length":   len(st.Transcript),
			"has_timeline":        len(st.Timeline) > 0,
			"task_count":          extractedTaskCount(st),
			"transcribe_attempts": st.TranscribeAttempts,
			"extract_attempts":    st.ExtractAttempts,
			"can_retry":           pipeline.CanRetry(st),
			"created_at":          st.CreatedAt,
			"updated_at":          st.UpdatedAt,
		}
		if st.LastErrorKind != "" {
			resp["last_error"] = gin.H{
				"kind":    st.LastErrorKind,
				"message": st.LastErrorMessage,
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

// ListTasksHandler returns the tasks materialized for a recording.
func ListTasksHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		recordingID := c.Param("id")

		var tasks []models.Task
		err := db.WithContext(c.Request.Context()).
			Where("recording_id = ?", recordingID).
			Order("created_at, id").
			Find(&tasks).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"recording_id": recordingID,
			"count":        len(tasks),
			"tasks":        tasks,
		})
	}
}

// extractedTaskCount counts the task candidates persisted on the run.
func extractedTaskCount(st *models.PipelineState) int {
	if len(st.ExtractedTasks) == 0 {
		return 0
	}
	var candidates []json.RawMessage
	if err := json.Unmarshal(st.ExtractedTasks, &candidates); err != nil {
		return 0
	}
	return len(candidates)
}

// rejectionResponse maps a start rejection to its HTTP representation.
func rejectionResponse(err error) (int, string, string) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError, "", "failed to start pipeline run"
	}

	switch perr.Kind {
	case pipeline.KindRecordingNotFound:
		return http.StatusNotFound, string(perr.Kind), perr.Message
	case pipeline.KindRecordingNotEligible, pipeline.KindInvalidInput:
		return http.StatusUnprocessableEntity, string(perr.Kind), perr.Message
	case pipeline.KindPipelineBusy, pipeline.KindAlreadyCompleted, pipeline.KindRetryBudgetExhausted:
		return http.StatusConflict, string(perr.Kind), perr.Message
	default:
		return http.StatusInternalServerError, string(perr.Kind), perr.Message
	}
}
