package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is the single retry/backoff policy shared by both provider
// clients, so their retry semantics stay provably identical.
type Policy struct {
	// MaxAttempts is the total number of attempts, not the retry count.
	MaxAttempts         int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultPolicy returns the production policy: 3 attempts, base delay
// doubling from 500ms with jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:         3,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         8 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.25,
	}
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.Multiplier = p.Multiplier
	bo.RandomizationFactor = p.RandomizationFactor
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// Do runs op until it succeeds, fails with a non-retryable Kind, or the
// attempt budget is spent. The last classified error is returned.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(attempts-1)), ctx)

	err := backoff.Retry(func() error {
		opErr := op()
		if opErr == nil {
			return nil
		}
		var perr *Error
		if errors.As(opErr, &perr) && !perr.Kind.Retryable() {
			return backoff.Permanent(opErr)
		}
		return opErr
	}, bo)
	return err
}
