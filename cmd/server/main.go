package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/meetscribe/meetscribe/internal/config"
	"github.com/meetscribe/meetscribe/internal/database"
	"github.com/meetscribe/meetscribe/internal/insights"
	"github.com/meetscribe/meetscribe/internal/pipeline"
	"github.com/meetscribe/meetscribe/internal/recordings"
	"github.com/meetscribe/meetscribe/internal/server"
	"github.com/meetscribe/meetscribe/internal/streams"
	"github.com/meetscribe/meetscribe/internal/tasks"
	"github.com/meetscribe/meetscribe/internal/transcription"
	"github.com/meetscribe/meetscribe/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cfg := config.Load()

	logger := worker.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		slog.Error("Failed to run migrations", "error", err.Error())
		os.Exit(1)
	}

	enqueuer, err := worker.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create task client", "error", err.Error())
		os.Exit(1)
	}
	defer enqueuer.Close()

	// The completion stream is best-effort; the pipeline runs without it.
	var publisher pipeline.CompletionPublisher
	if pub, err := streams.NewPublisher(cfg.RedisURL); err != nil {
		slog.Warn("Completion events disabled", "error", err.Error())
	} else {
		publisher = pub
		defer pub.Close()
	}

	extractor, err := insights.NewClient(cfg.LLMURL, cfg.LLMAPIKey, cfg.LLMModel, logger)
	if err != nil {
		slog.Error("Failed to create insights client", "error", err.Error())
		os.Exit(1)
	}

	orch := pipeline.NewOrchestrator(pipeline.Options{
		Ledger:        pipeline.NewGormLedger(db),
		Store:         recordings.NewStore(db),
		Transcriber:   transcription.NewClient(cfg.TranscribeURL, cfg.TranscribeAPIKey, cfg.TranscribeMaxBytes, logger),
		Extractor:     extractor,
		Materializer:  tasks.NewMaterializer(db),
		Publisher:     publisher,
		Enqueuer:      enqueuer,
		Logger:        logger,
		CallTimeout:   cfg.ProviderTimeout,
		MaxAudioBytes: cfg.TranscribeMaxBytes,
	})

	stopWorker, err := worker.Start(cfg, orch, db, enqueuer)
	if err != nil {
		slog.Error("Failed to start worker", "error", err.Error())
		os.Exit(1)
	}
	defer stopWorker()

	stopScheduler, err := worker.StartScheduler(cfg)
	if err != nil {
		slog.Error("Failed to start scheduler", "error", err.Error())
		os.Exit(1)
	}
	defer stopScheduler()

	router := server.NewRouter(cfg, db, orch)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Forced shutdown", "error", err.Error())
	}
}
