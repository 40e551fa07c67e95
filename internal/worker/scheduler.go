package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meetscribe/meetscribe/internal/config"
)

// StartScheduler creates and starts an Asynq Scheduler that periodically
// enqueues the stale-run sweep. Returns a stop function for graceful
// shutdown.
func StartScheduler(cfg *config.Config) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	task := asynq.NewTask(
		TaskSweepStaleRuns,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
		asynq.Unique(10*time.Minute), // prevent overlap if the scheduler fires twice
	)

	entryID, err := scheduler.Register(cfg.SweepInterval, task)
	if err != nil {
		return nil, fmt.Errorf("failed to register sweep schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	slog.Info(
		"Scheduler started",
		"schedule", cfg.SweepInterval,
		"entry_id", entryID,
	)

	return func() { scheduler.Shutdown() }, nil
}
