package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the pipeline can produce or observe.
// Classification is decided by HTTP status or error code, never by
// matching provider message text.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindPayloadTooLarge      Kind = "payload_too_large"
	KindRateLimited          Kind = "rate_limited"
	KindTransient            Kind = "transient"
	KindProviderRejected     Kind = "provider_rejected"
	KindMalformedResponse    Kind = "malformed_response"
	KindPipelineBusy         Kind = "pipeline_busy"
	KindAlreadyCompleted     Kind = "already_completed"
	KindRecordingNotFound    Kind = "recording_not_found"
	KindRecordingNotEligible Kind = "recording_not_eligible"
	KindRetryBudgetExhausted Kind = "retry_budget_exhausted"
)

// Retryable reports whether the retry policy may re-attempt this class of
// failure. MalformedResponse gets a single re-attempt managed by the
// insight client itself, outside the backoff budget.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTransient:
		return true
	}
	return false
}

// Error is a classified pipeline failure. Message is safe to surface
// verbatim to status-polling clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error with a formatted message.
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error.
func WrapError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the classification from err. Unclassified errors are
// treated as transient: unknown failures at provider boundaries are
// almost always network-shaped.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindTransient
}

// ClassifyStatus decides the failure class for a provider HTTP response
// from the status code alone. Both provider clients share it so their
// classification cannot drift apart.
func ClassifyStatus(code int) *Error {
	switch {
	case code == 429:
		return NewError(KindRateLimited, "provider rate limit exceeded (HTTP %d)", code)
	case code == 413:
		return NewError(KindPayloadTooLarge, "payload is too large for the provider (HTTP %d)", code)
	case code >= 500:
		return NewError(KindTransient, "provider server error (HTTP %d)", code)
	default:
		return NewError(KindProviderRejected, "provider rejected the request (HTTP %d)", code)
	}
}

// MessageOf returns the surfaceable message for err.
func MessageOf(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
