package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"webrag/internal/domain"
)

// ComputeFunc invokes the embedding collaborator for a single text.
type ComputeFunc func(ctx context.Context, text string) ([]float32, error)

// EmbeddingCache maps content fingerprints to previously computed vectors.
// Bounded capacity with least-recently-used eviction. Concurrent misses for
// the same fingerprint collapse to a single collaborator call; failed
// computes are never cached.
//
// Eviction is always safe: the vector index keeps its own copy of every
// vector at insertion time, so no index entry references cached memory.
type EmbeddingCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	group    singleflight.Group
	computes atomic.Int64
}

type cacheEntry struct {
	key string
	emb domain.Embedding
}

// NewEmbeddingCache creates a cache holding at most capacity embeddings.
func NewEmbeddingCache(capacity int) (*EmbeddingCache, error) {
	if capacity <= 0 {
		return nil, &domain.ConfigError{Field: "cache.capacity", Reason: "must be positive"}
	}
	return &EmbeddingCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}, nil
}

func cacheKey(fingerprint, modelID string) string {
	return fingerprint + "|" + modelID
}

// GetOrCompute returns the cached embedding for the fingerprint under the
// given model, invoking compute at most once per in-flight key on a miss.
// Other callers await the in-flight result rather than issuing duplicate
// collaborator calls. Cancellation of ctx abandons the wait and returns a
// TimeoutError; no partial state is committed.
func (c *EmbeddingCache) GetOrCompute(ctx context.Context, fingerprint, text, modelID string, compute ComputeFunc) (domain.Embedding, error) {
	key := cacheKey(fingerprint, modelID)

	if emb, ok := c.get(key); ok {
		return emb, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Another flight may have filled the cache between our miss and
		// this call.
		if emb, ok := c.get(key); ok {
			return emb, nil
		}

		vector, err := compute(ctx, text)
		if err != nil {
			return nil, err // no negative caching
		}

		emb := domain.Embedding{
			Fingerprint: fingerprint,
			Vector:      vector,
			ModelID:     modelID,
			Dim:         len(vector),
		}
		c.computes.Add(1)
		c.put(key, emb)
		return emb, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Embedding{}, res.Err
		}
		return res.Val.(domain.Embedding), nil
	case <-ctx.Done():
		return domain.Embedding{}, &domain.TimeoutError{Op: "embedding lookup", Err: ctx.Err()}
	}
}

// Get returns a cached embedding without computing on miss.
func (c *EmbeddingCache) Get(fingerprint, modelID string) (domain.Embedding, bool) {
	return c.get(cacheKey(fingerprint, modelID))
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Computes returns how many times the collaborator has been invoked. Used
// by stats reporting and by ingestion idempotence checks.
func (c *EmbeddingCache) Computes() int64 {
	return c.computes.Load()
}

func (c *EmbeddingCache) get(key string) (domain.Embedding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.Embedding{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).emb, true
}

func (c *EmbeddingCache) put(key string, emb domain.Embedding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).emb = emb
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, emb: emb})

	for len(c.entries) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}
