package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"github.com/meetscribe/meetscribe/internal/models"
	"github.com/meetscribe/meetscribe/internal/streams"
)

// ErrRecordingNotFound is returned by a RecordingStore when the id is unknown.
var ErrRecordingNotFound = errors.New("recording not found")

// RecordingStore resolves a recording id to its metadata and byte stream.
type RecordingStore interface {
	Resolve(ctx context.Context, recordingID string) (*models.Recording, error)
	Open(ctx context.Context, rec *models.Recording) (io.ReadCloser, error)
}

// Transcriber converts audio bytes into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, format string) (string, error)
}

// InsightExtractor produces the timeline and the task candidates. The two
// operations are separate on purpose: task extraction is strictly better
// with the timeline as structured context.
type InsightExtractor interface {
	GenerateTimeline(ctx context.Context, transcript string, durationSeconds int) ([]models.TimelineSegment, error)
	ExtractTasks(ctx context.Context, transcript string, timeline []models.TimelineSegment) ([]models.TaskCandidate, error)
}

// Materializer persists task candidates, deduplicated per recording.
type Materializer interface {
	Materialize(ctx context.Context, recordingID, userID string, candidates []models.TaskCandidate) ([]models.Task, error)
}

// CompletionPublisher emits the completion signal for the notification
// collaborator.
type CompletionPublisher interface {
	PublishCompletion(ctx context.Context, ev streams.CompletionEvent) (string, error)
}

// Enqueuer dispatches an accepted run as a non-blocking unit of work.
type Enqueuer interface {
	EnqueueProcess(recordingID string) error
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Ledger       Ledger
	Store        RecordingStore
	Transcriber  Transcriber
	Extractor    InsightExtractor
	Materializer Materializer
	Publisher    CompletionPublisher // optional
	Enqueuer     Enqueuer
	Logger       *slog.Logger

	// CallTimeout bounds each provider call. Zero means 5 minutes.
	CallTimeout time.Duration
	// MaxAudioBytes caps how much audio is read into memory. Zero means 100MB.
	MaxAudioBytes int64
}

// Orchestrator drives a recording through
// queued → transcribing → transcribed → extracting → completed,
// persisting state after every stage so a restart resumes instead of
// repeating successful work.
type Orchestrator struct {
	ledger       Ledger
	store        RecordingStore
	transcriber  Transcriber
	extractor    InsightExtractor
	materializer Materializer
	publisher    CompletionPublisher
	enqueue      Enqueuer
	logger       *slog.Logger

	callTimeout   time.Duration
	maxAudioBytes int64
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Minute
	}
	if opts.MaxAudioBytes <= 0 {
		opts.MaxAudioBytes = 100 << 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		ledger:        opts.Ledger,
		store:         opts.Store,
		transcriber:   opts.Transcriber,
		extractor:     opts.Extractor,
		materializer:  opts.Materializer,
		publisher:     opts.Publisher,
		enqueue:       opts.Enqueuer,
		logger:        opts.Logger,
		callTimeout:   opts.CallTimeout,
		maxAudioBytes: opts.MaxAudioBytes,
	}
}

// Start validates eligibility, claims the run via a status compare-and-swap
// and enqueues the unit of work. It returns immediately; callers observe
// progress by polling the ledger.
func (o *Orchestrator) Start(ctx context.Context, recordingID, userID string) (*models.PipelineState, error) {
	rec, err := o.store.Resolve(ctx, recordingID)
	if err != nil {
		if errors.Is(err, ErrRecordingNotFound) {
			return nil, NewError(KindRecordingNotFound, "no recording found with id %s", recordingID)
		}
		return nil, fmt.Errorf("failed to resolve recording: %w", err)
	}

	if rec.FileSize < models.MinRecordingBytes {
		return nil, NewError(KindRecordingNotEligible, "recording is only %d bytes, minimum %d required", rec.FileSize, models.MinRecordingBytes)
	}
	if !models.FormatSupported(rec.Format) {
		return nil, NewError(KindRecordingNotEligible, "unsupported media format %q", rec.Format)
	}

	st, err := o.ledger.Get(ctx, recordingID)
	if errors.Is(err, ErrStateNotFound) {
		st = &models.PipelineState{RecordingID: recordingID, Status: models.StatusQueued}
		if createErr := o.ledger.Create(ctx, st); createErr != nil {
			// A concurrent start may have created the row first.
			st, err = o.ledger.Get(ctx, recordingID)
			if err != nil {
				return nil, createErr
			}
		}
	} else if err != nil {
		return nil, err
	}

	if rej := startRejection(st); rej != nil {
		return nil, rej
	}

	claimed, err := o.ledger.TransitionStatus(ctx, recordingID, StartableStatuses(), models.StatusTranscribing)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the race with another start request.
		if cur, getErr := o.ledger.Get(ctx, recordingID); getErr == nil {
			if rej := startRejection(cur); rej != nil {
				return nil, rej
			}
		}
		return nil, NewError(KindPipelineBusy, "a pipeline run is already active for recording %s", recordingID)
	}

	if err := o.enqueue.EnqueueProcess(recordingID); err != nil {
		// Release the claim so a later start request can run.
		if _, rbErr := o.ledger.TransitionStatus(ctx, recordingID, []string{models.StatusTranscribing}, st.Status); rbErr != nil {
			o.logger.Error("Failed to release pipeline claim after enqueue failure",
				"recording_id", recordingID, "error", rbErr.Error())
		}
		return nil, fmt.Errorf("failed to enqueue pipeline run: %w", err)
	}

	o.logger.Info("Pipeline run accepted",
		"recording_id", recordingID,
		"user_id", userID,
		"format", rec.Format,
		"file_size", rec.FileSize,
	)

	st.Status = models.StatusTranscribing
	return st, nil
}

// Run executes the pipeline stages for a claimed recording. It is
// resume-aware: stages whose output is already persisted are skipped, so
// re-delivery after a crash repeats no successful work.
func (o *Orchestrator) Run(ctx context.Context, recordingID string) error {
	rec, err := o.store.Resolve(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("failed to resolve recording: %w", err)
	}

	st, err := o.ledger.Get(ctx, recordingID)
	if err != nil {
		return err
	}

	switch st.Status {
	case models.StatusCompleted:
		// Duplicate delivery of an already-finished run.
		return nil
	case models.StatusTranscriptionFailed, models.StatusExtractionFailed, models.StatusQueued:
		// Runs only execute after Start claimed them; anything else here
		// is a stale delivery that must wait for an explicit restart.
		o.logger.Warn("Ignoring pipeline run in non-active status",
			"recording_id", recordingID, "status", st.Status)
		return nil
	}

	if st.Transcript == "" {
		if err := o.runTranscription(ctx, rec, st); err != nil {
			return err
		}
	} else if st.Status == models.StatusTranscribing {
		// Transcript persisted but the status write was lost; repair it.
		if err := o.ledger.Update(ctx, recordingID, map[string]interface{}{
			"status": models.StatusTranscribed,
		}); err != nil {
			return err
		}
		st.Status = models.StatusTranscribed
	}

	return o.runExtraction(ctx, rec, st)
}

func (o *Orchestrator) runTranscription(ctx context.Context, rec *models.Recording, st *models.PipelineState) error {
	// A re-delivered run (sweeper, duplicate dispatch) must not spend more
	// than the stage budget; park it as permanently failed instead.
	if st.TranscribeAttempts >= MaxStageAttempts {
		exhausted := NewError(KindRetryBudgetExhausted,
			"transcription for recording %s already spent its %d attempts", rec.ID, MaxStageAttempts)
		if failErr := o.failStage(ctx, rec.ID, models.StatusTranscriptionFailed, exhausted); failErr != nil {
			return failErr
		}
		return exhausted
	}

	st.TranscribeAttempts++
	if err := o.ledger.Update(ctx, rec.ID, map[string]interface{}{
		"transcribe_attempts": st.TranscribeAttempts,
	}); err != nil {
		return err
	}

	o.logger.Info("Transcribing recording",
		"recording_id", rec.ID, "attempt", st.TranscribeAttempts)

	transcript, err := o.transcribe(ctx, rec)
	if err != nil {
		if failErr := o.failStage(ctx, rec.ID, models.StatusTranscriptionFailed, err); failErr != nil {
			return failErr
		}
		return fmt.Errorf("transcription failed for recording %s: %w", rec.ID, err)
	}

	if err := o.ledger.Update(ctx, rec.ID, map[string]interface{}{
		"transcript":         transcript,
		"status":             models.StatusTranscribed,
		"last_error_kind":    "",
		"last_error_message": "",
	}); err != nil {
		return err
	}
	st.Transcript = transcript
	st.Status = models.StatusTranscribed

	o.logger.Info("Transcription completed",
		"recording_id", rec.ID, "transcript_length", len(transcript))
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, rec *models.Recording) (string, error) {
	audio, err := o.readAudio(ctx, rec)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.transcriber.Transcribe(callCtx, audio, rec.FileName, rec.Format)
}

func (o *Orchestrator) readAudio(ctx context.Context, rec *models.Recording) ([]byte, error) {
	rc, err := o.store.Open(ctx, rec)
	if err != nil {
		return nil, WrapError(KindTransient, err, "failed to open recording bytes")
	}
	defer rc.Close()

	audio, err := io.ReadAll(io.LimitReader(rc, o.maxAudioBytes+1))
	if err != nil {
		return nil, WrapError(KindTransient, err, "failed to read recording bytes")
	}
	if int64(len(audio)) > o.maxAudioBytes {
		return nil, NewError(KindPayloadTooLarge, "recording exceeds the %d byte limit", o.maxAudioBytes)
	}
	return audio, nil
}

func (o *Orchestrator) runExtraction(ctx context.Context, rec *models.Recording, st *models.PipelineState) error {
	if st.ExtractAttempts >= MaxStageAttempts {
		exhausted := NewError(KindRetryBudgetExhausted,
			"extraction for recording %s already spent its %d attempts", rec.ID, MaxStageAttempts)
		if failErr := o.failStage(ctx, rec.ID, models.StatusExtractionFailed, exhausted); failErr != nil {
			return failErr
		}
		return exhausted
	}

	st.ExtractAttempts++
	if err := o.ledger.Update(ctx, rec.ID, map[string]interface{}{
		"status":           models.StatusExtracting,
		"extract_attempts": st.ExtractAttempts,
	}); err != nil {
		return err
	}
	st.Status = models.StatusExtracting

	duration := 0
	if rec.DurationSeconds != nil {
		duration = *rec.DurationSeconds
	}

	// Timeline persisted by an earlier attempt is reused as-is: a retry
	// after a task-extraction failure repeats only task extraction.
	var segments []models.TimelineSegment
	if len(st.Timeline) == 0 {
		var err error
		segments, err = o.generateTimeline(ctx, st.Transcript, duration)
		if err != nil {
			if failErr := o.failStage(ctx, rec.ID, models.StatusExtractionFailed, err); failErr != nil {
				return failErr
			}
			return fmt.Errorf("timeline generation failed for recording %s: %w", rec.ID, err)
		}

		raw, err := json.Marshal(segments)
		if err != nil {
			return fmt.Errorf("failed to marshal timeline: %w", err)
		}
		if err := o.ledger.Update(ctx, rec.ID, map[string]interface{}{
			"timeline": datatypes.JSON(raw),
		}); err != nil {
			return err
		}
		st.Timeline = raw
	} else if err := json.Unmarshal(st.Timeline, &segments); err != nil {
		return fmt.Errorf("failed to decode persisted timeline: %w", err)
	}

	candidates, err := o.extractTasks(ctx, st.Transcript, segments)
	if err != nil {
		if failErr := o.failStage(ctx, rec.ID, models.StatusExtractionFailed, err); failErr != nil {
			return failErr
		}
		return fmt.Errorf("task extraction failed for recording %s: %w", rec.ID, err)
	}

	rawTasks, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal task candidates: %w", err)
	}
	if err := o.ledger.Update(ctx, rec.ID, map[string]interface{}{
		"extracted_tasks": datatypes.JSON(rawTasks),
	}); err != nil {
		return err
	}

	tasks, err := o.materializer.Materialize(ctx, rec.ID, rec.UserID, candidates)
	if err != nil {
		wrapped := WrapError(KindTransient, err, "failed to materialize tasks")
		if failErr := o.failStage(ctx, rec.ID, models.StatusExtractionFailed, wrapped); failErr != nil {
			return failErr
		}
		return fmt.Errorf("task materialization failed for recording %s: %w", rec.ID, err)
	}

	if err := o.ledger.Update(ctx, rec.ID, map[string]interface{}{
		"status":             models.StatusCompleted,
		"last_error_kind":    "",
		"last_error_message": "",
	}); err != nil {
		return err
	}
	st.Status = models.StatusCompleted

	o.logger.Info("Pipeline run completed",
		"recording_id", rec.ID,
		"timeline_segments", len(segments),
		"materialized_tasks", len(tasks),
	)

	o.publishCompletion(ctx, rec, tasks)
	return nil
}

func (o *Orchestrator) generateTimeline(ctx context.Context, transcript string, durationSeconds int) ([]models.TimelineSegment, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.extractor.GenerateTimeline(callCtx, transcript, durationSeconds)
}

func (o *Orchestrator) extractTasks(ctx context.Context, transcript string, timeline []models.TimelineSegment) ([]models.TaskCandidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.extractor.ExtractTasks(callCtx, transcript, timeline)
}

// failStage records the classified failure on the ledger and moves the run
// into the matching failed sub-state.
func (o *Orchestrator) failStage(ctx context.Context, recordingID, failedStatus string, cause error) error {
	kind := KindOf(cause)
	o.logger.Error("Pipeline stage failed",
		"recording_id", recordingID,
		"failed_status", failedStatus,
		"error_kind", string(kind),
		"error", MessageOf(cause),
	)
	return o.ledger.Update(ctx, recordingID, map[string]interface{}{
		"status":             failedStatus,
		"last_error_kind":    string(kind),
		"last_error_message": MessageOf(cause),
	})
}

// publishCompletion emits the completion signal. Publish failures are
// logged, never fatal: the run itself is already durable.
func (o *Orchestrator) publishCompletion(ctx context.Context, rec *models.Recording, tasks []models.Task) {
	if o.publisher == nil {
		return
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}

	msgID, err := o.publisher.PublishCompletion(ctx, streams.CompletionEvent{
		RecordingID:         rec.ID,
		UserID:              rec.UserID,
		MaterializedTaskIDs: ids,
	})
	if err != nil {
		o.logger.Error("Failed to publish completion event",
			"recording_id", rec.ID, "error", err.Error())
		return
	}
	o.logger.Info("Completion event published",
		"recording_id", rec.ID, "stream_msg_id", msgID)
}
