package retry

import (
	"context"
	"errors"
	"time"

	"webrag/internal/domain"
)

// Policy retries transient failures with doubling backoff. Configuration
// and dimension errors are never retried; they will not heal on their own.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewPolicy(maxAttempts int, initialBackoff time.Duration) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Policy{MaxAttempts: maxAttempts, InitialBackoff: initialBackoff}
}

// Do runs op until it succeeds, a non-retryable error occurs, attempts run
// out, or the context ends.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := p.InitialBackoff

	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil || !Retryable(err) || attempt >= p.MaxAttempts {
			return err
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return &domain.TimeoutError{Op: "retry wait", Err: ctx.Err()}
		}
		backoff *= 2
	}
}

// Retryable reports whether the error is transient: provider failures and
// timeouts qualify, bad configuration and dimension mismatches do not.
func Retryable(err error) bool {
	var embErr *domain.EmbeddingError
	var genErr *domain.GenerationError
	var timeoutErr *domain.TimeoutError

	var dimErr *domain.DimensionError
	if errors.As(err, &dimErr) {
		return false
	}
	var cfgErr *domain.ConfigError
	if errors.As(err, &cfgErr) {
		return false
	}

	return errors.As(err, &embErr) || errors.As(err, &genErr) || errors.As(err, &timeoutErr)
}
