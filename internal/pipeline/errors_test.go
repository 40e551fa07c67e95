package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{429, KindRateLimited},
		{413, KindPayloadTooLarge},
		{500, KindTransient},
		{502, KindTransient},
		{503, KindTransient},
		{400, KindProviderRejected},
		{401, KindProviderRejected},
		{404, KindProviderRejected},
		{422, KindProviderRejected},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			err := ClassifyStatus(tt.code)
			assert.Equal(t, tt.want, err.Kind)
		})
	}
}

func TestKindRetryable(t *testing.T) {
	assert.True(t, KindRateLimited.Retryable())
	assert.True(t, KindTransient.Retryable())

	assert.False(t, KindInvalidInput.Retryable())
	assert.False(t, KindPayloadTooLarge.Retryable())
	assert.False(t, KindProviderRejected.Retryable())
	assert.False(t, KindMalformedResponse.Retryable())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindRateLimited, KindOf(NewError(KindRateLimited, "slow down")))

	wrapped := fmt.Errorf("stage failed: %w", NewError(KindPayloadTooLarge, "too big"))
	assert.Equal(t, KindPayloadTooLarge, KindOf(wrapped))

	// Unclassified errors default to transient.
	assert.Equal(t, KindTransient, KindOf(errors.New("connection reset")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := WrapError(KindTransient, cause, "transcription request failed")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "transcription request failed", MessageOf(err))
	assert.Contains(t, err.Error(), "transient")
}
