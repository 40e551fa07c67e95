package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskProcessRecording = "pipeline:process"
	TaskSweepStaleRuns   = "pipeline:sweep"
)

// processPayload is the payload for a pipeline:process task.
type processPayload struct {
	RecordingID string `json:"recording_id"`
}

// Client enqueues pipeline tasks. It satisfies the orchestrator's
// Enqueuer interface.
type Client struct {
	inner *asynq.Client
}

// NewClient creates the Asynq client used for task enqueueing.
func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Client{inner: asynq.NewClient(opt)}, nil
}

// Close closes the Asynq client connection gracefully.
func (c *Client) Close() error {
	return c.inner.Close()
}

// EnqueueProcess enqueues a pipeline run for the given recording. The
// generous timeout covers worst-case audio length across both provider
// calls; asynq-level retries only re-deliver after infrastructure
// failures — stage retries belong to the orchestrator.
func (c *Client) EnqueueProcess(recordingID string) error {
	payload, err := json.Marshal(processPayload{RecordingID: recordingID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(
		TaskProcessRecording,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(24*time.Hour),
	)

	_, err = c.inner.Enqueue(task)
	return err
}
