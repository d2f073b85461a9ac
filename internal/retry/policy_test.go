package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"webrag/internal/domain"
)

func TestDoRetriesTransientFailure(t *testing.T) {
	p := NewPolicy(2, time.Millisecond)

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &domain.EmbeddingError{Model: "m", Err: errors.New("flaky")}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	p := NewPolicy(2, time.Millisecond)

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &domain.EmbeddingError{Model: "m", Err: errors.New("still down")}
	})
	var embErr *domain.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	require.Equal(t, 2, calls)
}

func TestDoDoesNotRetryConfigErrors(t *testing.T) {
	p := NewPolicy(3, time.Millisecond)

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &domain.DimensionError{Want: 3, Got: 2}
	})
	var dimErr *domain.DimensionError
	require.ErrorAs(t, err, &dimErr)
	require.Equal(t, 1, calls)
}

func TestDoHonorsContextDuringBackoff(t *testing.T) {
	p := NewPolicy(3, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(ctx context.Context) error {
			return &domain.TimeoutError{Op: "embed", Err: errors.New("slow")}
		})
	}()

	cancel()
	select {
	case err := <-done:
		var timeoutErr *domain.TimeoutError
		require.ErrorAs(t, err, &timeoutErr)
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(&domain.EmbeddingError{Model: "m", Err: errors.New("x")}))
	require.True(t, Retryable(&domain.GenerationError{Model: "m", Err: errors.New("x")}))
	require.True(t, Retryable(&domain.TimeoutError{Op: "embed", Err: errors.New("x")}))
	require.False(t, Retryable(&domain.ConfigError{Field: "f", Reason: "r"}))
	require.False(t, Retryable(&domain.DimensionError{Want: 3, Got: 2}))
	require.False(t, Retryable(errors.New("plain")))
}
