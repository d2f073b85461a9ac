package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"webrag/internal/domain"
)

func constVector(v []float32) ComputeFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return v, nil
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c, err := NewEmbeddingCache(10)
	require.NoError(t, err)

	var calls atomic.Int64
	compute := func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		return []float32{1, 2, 3}, nil
	}

	ctx := context.Background()
	first, err := c.GetOrCompute(ctx, "fp1", "some text", "model-a", compute)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, first.Vector)
	require.Equal(t, "fp1", first.Fingerprint)
	require.Equal(t, 3, first.Dim)

	second, err := c.GetOrCompute(ctx, "fp1", "some text", "model-a", compute)
	require.NoError(t, err)
	require.Equal(t, first.Vector, second.Vector)

	require.Equal(t, int64(1), calls.Load())
	require.Equal(t, int64(1), c.Computes())
}

func TestDistinctModelsComputedSeparately(t *testing.T) {
	c, err := NewEmbeddingCache(10)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.GetOrCompute(ctx, "fp1", "text", "model-a", constVector([]float32{1}))
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "fp1", "text", "model-b", constVector([]float32{2}))
	require.NoError(t, err)

	require.Equal(t, int64(2), c.Computes())
	require.Equal(t, 2, c.Len())
}

func TestLRUEviction(t *testing.T) {
	c, err := NewEmbeddingCache(2)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.GetOrCompute(ctx, "fp1", "a", "m", constVector([]float32{1}))
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "fp2", "b", "m", constVector([]float32{2}))
	require.NoError(t, err)

	// Touch fp1 so fp2 becomes the eviction candidate.
	_, ok := c.Get("fp1", "m")
	require.True(t, ok)

	_, err = c.GetOrCompute(ctx, "fp3", "c", "m", constVector([]float32{3}))
	require.NoError(t, err)

	require.Equal(t, 2, c.Len())
	_, ok = c.Get("fp1", "m")
	require.True(t, ok, "recently used entry should survive")
	_, ok = c.Get("fp2", "m")
	require.False(t, ok, "least recently used entry should be evicted")
}

func TestComputeErrorNotCached(t *testing.T) {
	c, err := NewEmbeddingCache(10)
	require.NoError(t, err)

	boom := &domain.EmbeddingError{Model: "m", Err: errors.New("quota exceeded")}
	var calls atomic.Int64
	failing := func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		return nil, boom
	}

	ctx := context.Background()
	_, err = c.GetOrCompute(ctx, "fp1", "text", "m", failing)
	var embErr *domain.EmbeddingError
	require.ErrorAs(t, err, &embErr)

	// The failed miss is not cached: a second call computes again.
	_, err = c.GetOrCompute(ctx, "fp1", "text", "m", failing)
	require.Error(t, err)
	require.Equal(t, int64(2), calls.Load())
	require.Equal(t, 0, c.Len())
	require.Equal(t, int64(0), c.Computes())
}

func TestConcurrentMissesCollapse(t *testing.T) {
	c, err := NewEmbeddingCache(10)
	require.NoError(t, err)

	var calls atomic.Int64
	slow := func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return []float32{4, 5}, nil
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emb, err := c.GetOrCompute(ctx, "fp1", "text", "m", slow)
			if err != nil {
				t.Error(err)
				return
			}
			if len(emb.Vector) != 2 {
				t.Errorf("unexpected vector: %v", emb.Vector)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), calls.Load(), "concurrent misses must collapse to one compute")
}

func TestCancelledContext(t *testing.T) {
	c, err := NewEmbeddingCache(10)
	require.NoError(t, err)

	started := make(chan struct{})
	block := make(chan struct{})
	slow := func(ctx context.Context, text string) ([]float32, error) {
		close(started)
		<-block
		return []float32{1}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctx, "fp1", "text", "m", slow)
		done <- err
	}()

	<-started
	cancel()

	err = <-done
	var timeoutErr *domain.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	close(block)
}

func TestNewEmbeddingCacheInvalidCapacity(t *testing.T) {
	_, err := NewEmbeddingCache(0)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
