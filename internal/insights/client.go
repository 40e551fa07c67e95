package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kaptinlin/jsonschema"

	"github.com/meetscribe/meetscribe/internal/models"
	"github.com/meetscribe/meetscribe/internal/pipeline"
)

// timelineSchema is the minimum structure a timeline response must carry
// before field-level coercion takes over. Anything that fails this check
// is a malformed response, not a coercible one.
const timelineSchema = `{
	"type": "object",
	"required": ["timeline"],
	"properties": {
		"timeline": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["minute", "summary"]
			}
		}
	}
}`

const tasksSchema = `{
	"type": "array",
	"items": {"type": "object"}
}`

// Client calls the generative-AI provider twice per run: once for the
// minute-by-minute timeline, once for task candidates. Both operations are
// idempotent given identical input.
type Client struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
	policy     pipeline.Policy
	logger     *slog.Logger

	timelineSchema *jsonschema.Schema
	tasksSchema    *jsonschema.Schema
}

// NewClient creates an insight extraction client.
func NewClient(apiURL, apiKey, model string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	compiler := jsonschema.NewCompiler()
	tl, err := compiler.Compile([]byte(timelineSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile timeline schema: %w", err)
	}
	ts, err := compiler.Compile([]byte(tasksSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile tasks schema: %w", err)
	}

	return &Client{
		apiURL:         apiURL,
		apiKey:         apiKey,
		model:          model,
		httpClient:     &http.Client{Timeout: 5 * time.Minute},
		policy:         pipeline.DefaultPolicy(),
		logger:         logger,
		timelineSchema: tl,
		tasksSchema:    ts,
	}, nil
}

// GenerateTimeline asks the provider for a minute-by-minute timeline of
// the transcript and normalizes it to contiguous minute indices.
func (c *Client) GenerateTimeline(ctx context.Context, transcript string, durationSeconds int) ([]models.TimelineSegment, error) {
	minutes := expectedMinutes(durationSeconds)
	prompt := timelinePrompt(transcript, minutes)

	raw, err := c.completeStructured(ctx, prompt, c.timelineSchema, extractJSONObject)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Timeline []segmentPayload `json:"timeline"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pipeline.WrapError(pipeline.KindMalformedResponse, err, "timeline response did not decode")
	}

	segments := make([]models.TimelineSegment, 0, len(payload.Timeline))
	for _, p := range payload.Timeline {
		segments = append(segments, p.toSegment())
	}

	normalized := normalizeTimeline(segments, minutes)
	c.logger.Info("Timeline generated",
		"segments", len(normalized), "duration_minutes", minutes)
	return normalized, nil
}

// ExtractTasks asks the provider for task candidates, feeding it the
// timeline as structured context on top of the raw transcript.
func (c *Client) ExtractTasks(ctx context.Context, transcript string, timeline []models.TimelineSegment) ([]models.TaskCandidate, error) {
	timelineJSON, err := json.Marshal(timeline)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timeline context: %w", err)
	}
	prompt := tasksPrompt(transcript, string(timelineJSON))

	raw, err := c.completeStructured(ctx, prompt, c.tasksSchema, extractJSONArray)
	if err != nil {
		return nil, err
	}

	var payload []taskPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pipeline.WrapError(pipeline.KindMalformedResponse, err, "tasks response did not decode")
	}

	candidates := make([]models.TaskCandidate, 0, len(payload))
	for _, p := range payload {
		candidates = append(candidates, coerceCandidate(p))
	}

	c.logger.Info("Task candidates extracted", "count", len(candidates))
	return candidates, nil
}

// completeStructured runs one provider call (with the shared backoff
// policy for rate-limited/transient failures) and parse-then-validates the
// response. A malformed response is re-attempted exactly once in case the
// malformation was an artifact of provider instability.
func (c *Client) completeStructured(ctx context.Context, prompt string, schema *jsonschema.Schema, extract func(string) (string, bool)) (json.RawMessage, error) {
	var raw json.RawMessage

	op := func() error {
		content, err := c.chat(ctx, prompt)
		if err != nil {
			return err
		}

		fragment, ok := extract(content)
		if !ok {
			return pipeline.NewError(pipeline.KindMalformedResponse, "no recognizable JSON structure in provider response")
		}

		var v interface{}
		if err := json.Unmarshal([]byte(fragment), &v); err != nil {
			return pipeline.WrapError(pipeline.KindMalformedResponse, err, "provider response is not valid JSON")
		}

		if result := schema.Validate(v); !result.IsValid() {
			return pipeline.NewError(pipeline.KindMalformedResponse, "provider response failed structural validation")
		}

		raw = json.RawMessage(fragment)
		return nil
	}

	err := c.policy.Do(ctx, op)
	if err != nil && pipeline.KindOf(err) == pipeline.KindMalformedResponse {
		c.logger.Warn("Provider response malformed, re-attempting once", "error", err.Error())
		err = c.policy.Do(ctx, op)
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// chat issues a single chat-completion call and returns the assistant
// message content. Failures are classified by HTTP status.
func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.0,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pipeline.WrapError(pipeline.KindTransient, err, "insight request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pipeline.WrapError(pipeline.KindTransient, err, "failed to read provider response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", pipeline.ClassifyStatus(resp.StatusCode)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
		return "", pipeline.NewError(pipeline.KindMalformedResponse, "provider returned no completion choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func expectedMinutes(durationSeconds int) int {
	if durationSeconds <= 0 {
		return 0
	}
	return (durationSeconds + 59) / 60
}
