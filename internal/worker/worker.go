package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/meetscribe/meetscribe/internal/config"
	"github.com/meetscribe/meetscribe/internal/models"
	"github.com/meetscribe/meetscribe/internal/pipeline"
)

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, orch *pipeline.Orchestrator, db *gorm.DB, enqueuer *Client) error {
	srv, mux, err := newServer(cfg, orch, db, enqueuer)
	if err != nil {
		return err
	}
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop
// function. Use this for embedded mode so the caller can coordinate
// shutdown.
func Start(cfg *config.Config, orch *pipeline.Orchestrator, db *gorm.DB, enqueuer *Client) (stop func(), err error) {
	srv, mux, err := newServer(cfg, orch, db, enqueuer)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, orch *pipeline.Orchestrator, db *gorm.DB, enqueuer *Client) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     cfg.WorkerConcurrency,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskProcessRecording, handleProcessRecording(logger, orch))
	mux.HandleFunc(TaskSweepStaleRuns, handleSweepStaleRuns(logger, db, enqueuer, cfg.SweepStaleAfter))

	logger.Info("Worker starting", "concurrency", cfg.WorkerConcurrency, "redis", cfg.RedisURL)
	return srv, mux, nil
}

// handleProcessRecording executes a pipeline run. Classified pipeline
// failures are terminal here — the orchestrator already spent the stage's
// retry budget and recorded the failure on the ledger — so they must not
// be re-delivered. Infrastructure failures are left retryable.
func handleProcessRecording(logger *slog.Logger, orch *pipeline.Orchestrator) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload processPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		logger.Info("Processing pipeline:process task", "recording_id", payload.RecordingID)

		if err := orch.Run(ctx, payload.RecordingID); err != nil {
			var perr *pipeline.Error
			if errors.As(err, &perr) {
				logger.Error("Pipeline run failed",
					"recording_id", payload.RecordingID,
					"error_kind", string(perr.Kind),
					"error", perr.Message,
				)
				return fmt.Errorf("pipeline run failed: %v: %w", err, asynq.SkipRetry)
			}
			return fmt.Errorf("pipeline run failed: %w", err)
		}

		return nil
	}
}

// handleSweepStaleRuns re-enqueues runs that were claimed but stopped
// making progress — the worker that held them died mid-run. The
// orchestrator's resume logic makes the re-delivery safe.
func handleSweepStaleRuns(logger *slog.Logger, db *gorm.DB, enqueuer *Client, staleAfter time.Duration) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		cutoff := time.Now().Add(-staleAfter)

		var stale []models.PipelineState
		err := db.WithContext(ctx).
			Where("status IN ? AND updated_at < ?",
				[]string{models.StatusTranscribing, models.StatusTranscribed, models.StatusExtracting},
				cutoff).
			Find(&stale).Error
		if err != nil {
			return fmt.Errorf("failed to query stale pipeline runs: %w", err)
		}

		for _, st := range stale {
			logger.Warn("Re-enqueueing stale pipeline run",
				"recording_id", st.RecordingID,
				"status", st.Status,
				"updated_at", st.UpdatedAt,
			)
			if err := enqueuer.EnqueueProcess(st.RecordingID); err != nil {
				logger.Error("Failed to re-enqueue stale run",
					"recording_id", st.RecordingID, "error", err.Error())
			}
		}

		if len(stale) > 0 {
			logger.Info("Stale-run sweep finished", "re_enqueued", len(stale))
		}
		return nil
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		if retried >= maxRetry {
			logger.Error(
				"Task moved to dead letter queue (all retries exhausted)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
