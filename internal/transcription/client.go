package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/meetscribe/meetscribe/internal/models"
	"github.com/meetscribe/meetscribe/internal/pipeline"
)

// contentTypes maps a declared media format to the multipart content type
// the provider expects.
var contentTypes = map[string]string{
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"mp4":  "audio/mp4",
	"m4a":  "audio/mp4",
	"webm": "audio/webm",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
}

// Client calls the external speech-to-text provider. Failures are
// normalized into the pipeline error taxonomy by HTTP status code;
// rate-limited and transient failures are retried with backoff.
type Client struct {
	baseURL    string
	apiKey     string
	maxBytes   int64
	httpClient *http.Client
	policy     pipeline.Policy
	logger     *slog.Logger
}

// NewClient creates a transcription client. maxBytes is the provider's
// payload limit; zero selects a 100MB default.
func NewClient(baseURL, apiKey string, maxBytes int64, logger *slog.Logger) *Client {
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxBytes:   maxBytes,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		policy:     pipeline.DefaultPolicy(),
		logger:     logger,
	}
}

// Transcribe uploads the audio and returns the transcript. Input gates run
// before any network call: undersized or oddly-formatted payloads never
// reach the provider.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, format string) (string, error) {
	if int64(len(audio)) < models.MinRecordingBytes {
		return "", pipeline.NewError(pipeline.KindInvalidInput,
			"audio is only %d bytes, minimum %d required", len(audio), models.MinRecordingBytes)
	}
	if int64(len(audio)) > c.maxBytes {
		return "", pipeline.NewError(pipeline.KindPayloadTooLarge,
			"audio is %d bytes, provider limit is %d", len(audio), c.maxBytes)
	}
	if !models.FormatSupported(format) {
		return "", pipeline.NewError(pipeline.KindInvalidInput,
			"unsupported media format %q", format)
	}
	if filename == "" {
		filename = "audio." + format
	}

	var transcript string
	attempt := 0
	err := c.policy.Do(ctx, func() error {
		attempt++
		c.logger.Info("Calling transcription provider",
			"attempt", attempt, "bytes", len(audio), "format", format)

		text, attemptErr := c.transcribeOnce(ctx, audio, filename, format)
		if attemptErr != nil {
			c.logger.Warn("Transcription attempt failed",
				"attempt", attempt, "error", attemptErr.Error())
			return attemptErr
		}
		transcript = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return transcript, nil
}

func (c *Client) transcribeOnce(ctx context.Context, audio []byte, filename, format string) (string, error) {
	req, err := c.buildRequest(ctx, audio, filename, format)
	if err != nil {
		return "", pipeline.WrapError(pipeline.KindInvalidInput, err, "failed to build provider request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pipeline.WrapError(pipeline.KindTransient, err, "transcription request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pipeline.WrapError(pipeline.KindTransient, err, "failed to read provider response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", pipeline.ClassifyStatus(resp.StatusCode)
	}

	return extractTranscript(body)
}

func (c *Client) buildRequest(ctx context.Context, audio []byte, filename, format string) (*http.Request, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	if err := w.WriteField("content_type", contentTypes[format]); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-API-Key", c.apiKey)
	return req, nil
}

// extractTranscript accepts the transcript from the first populated key
// the provider is known to use.
func extractTranscript(body []byte) (string, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", pipeline.WrapError(pipeline.KindProviderRejected, err, "provider returned an unreadable body")
	}

	for _, key := range []string{"transcript", "text", "transcription", "result"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", pipeline.NewError(pipeline.KindProviderRejected, "provider response contained no transcript")
}
