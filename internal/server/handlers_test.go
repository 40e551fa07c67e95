package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/meetscribe/meetscribe/internal/models"
	"github.com/meetscribe/meetscribe/internal/pipeline"
)

type fakeStarter struct {
	st  *models.PipelineState
	err error

	gotRecordingID string
	gotUserID      string
}

func (f *fakeStarter) Start(ctx context.Context, recordingID, userID string) (*models.PipelineState, error) {
	f.gotRecordingID = recordingID
	f.gotUserID = userID
	if f.err != nil {
		return nil, f.err
	}
	return f.st, nil
}

type fakeLedger struct {
	st  *models.PipelineState
	err error
}

func (f *fakeLedger) Get(ctx context.Context, recordingID string) (*models.PipelineState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.st, nil
}

func (f *fakeLedger) Create(ctx context.Context, st *models.PipelineState) error { return nil }

func (f *fakeLedger) TransitionStatus(ctx context.Context, recordingID string, from []string, to string) (bool, error) {
	return false, nil
}

func (f *fakeLedger) Update(ctx context.Context, recordingID string, fields map[string]interface{}) error {
	return nil
}

func performProcess(t *testing.T, handler gin.HandlerFunc, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/api/recordings/:id/process", handler)

	req := httptest.NewRequest(http.MethodPost, "/api/recordings/rec-1/process", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func performStatus(t *testing.T, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/api/recordings/:id/status", handler)

	req := httptest.NewRequest(http.MethodGet, "/api/recordings/rec-1/status", nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartProcessingAccepted(t *testing.T) {
	starter := &fakeStarter{st: &models.PipelineState{RecordingID: "rec-1", Status: models.StatusTranscribing}}

	w := performProcess(t, StartProcessingHandler(starter), []byte(`{"user_id": "user-1"}`))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "rec-1", starter.gotRecordingID)
	assert.Equal(t, "user-1", starter.gotUserID)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusTranscribing, resp["status"])
}

func TestStartProcessingRequiresUserID(t *testing.T) {
	starter := &fakeStarter{}

	w := performProcess(t, StartProcessingHandler(starter), []byte(`{}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, starter.gotRecordingID, "the starter must not be reached")
}

func TestStartProcessingRejections(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"unknown recording", pipeline.NewError(pipeline.KindRecordingNotFound, "no recording"), http.StatusNotFound},
		{"ineligible recording", pipeline.NewError(pipeline.KindRecordingNotEligible, "too small"), http.StatusUnprocessableEntity},
		{"busy pipeline", pipeline.NewError(pipeline.KindPipelineBusy, "already running"), http.StatusConflict},
		{"already completed", pipeline.NewError(pipeline.KindAlreadyCompleted, "done"), http.StatusConflict},
		{"budget exhausted", pipeline.NewError(pipeline.KindRetryBudgetExhausted, "spent"), http.StatusConflict},
		{"unclassified failure", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			starter := &fakeStarter{err: tt.err}

			w := performProcess(t, StartProcessingHandler(starter), []byte(`{"user_id": "user-1"}`))

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestStatusNotFound(t *testing.T) {
	w := performStatus(t, StatusHandler(&fakeLedger{err: pipeline.ErrStateNotFound}))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusOfFailedRun(t *testing.T) {
	ledger := &fakeLedger{st: &models.PipelineState{
		RecordingID:        "rec-1",
		Status:             models.StatusTranscriptionFailed,
		TranscribeAttempts: 1,
		LastErrorKind:      string(pipeline.KindRateLimited),
		LastErrorMessage:   "provider rate limit exceeded (HTTP 429)",
	}}

	w := performStatus(t, StatusHandler(ledger))

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, models.StatusTranscriptionFailed, resp["status"])
	assert.Equal(t, true, resp["can_retry"])
	assert.Equal(t, false, resp["has_transcript"])

	lastErr, ok := resp["last_error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(pipeline.KindRateLimited), lastErr["kind"])
	assert.Equal(t, "provider rate limit exceeded (HTTP 429)", lastErr["message"])
}

func TestStatusOfCompletedRun(t *testing.T) {
	ledger := &fakeLedger{st: &models.PipelineState{
		RecordingID:        "rec-1",
		Status:             models.StatusCompleted,
		Transcript:         "hello world",
		Timeline:           datatypes.JSON(`[{"minute":1}]`),
		ExtractedTasks:     datatypes.JSON(`[{"title":"a"},{"title":"b"}]`),
		TranscribeAttempts: 1,
		ExtractAttempts:    1,
	}}

	w := performStatus(t, StatusHandler(ledger))

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, models.StatusCompleted, resp["status"])
	assert.Equal(t, true, resp["has_transcript"])
	assert.Equal(t, float64(11), resp["transcript_length"])
	assert.Equal(t, true, resp["has_timeline"])
	assert.Equal(t, float64(2), resp["task_count"])
	assert.Equal(t, false, resp["can_retry"])
	assert.NotContains(t, resp, "last_error")
}
