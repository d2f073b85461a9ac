package index

import (
	"sort"
	"sync"

	"webrag/internal/domain"
	"webrag/internal/port"
)

// FlatIndex is the exact nearest-neighbor baseline: a brute-force scan
// over all stored vectors. O(n*d) per query, always correct.
//
// Entries are replaced atomically under the write lock; readers observe
// either the pre- or post-upsert vector, never a partial write.
type FlatIndex struct {
	mu      sync.RWMutex
	dim     int
	metric  Metric
	vectors map[string][]float32
}

// NewFlatIndex creates an empty exact index for vectors of the given
// dimensionality.
func NewFlatIndex(dim int, metric Metric) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, &domain.ConfigError{Field: "embedding.dimension", Reason: "must be positive"}
	}
	return &FlatIndex{
		dim:     dim,
		metric:  metric,
		vectors: make(map[string][]float32),
	}, nil
}

// Upsert inserts the vector, replacing any existing entry for the chunk ID.
// The index stores its own copy so later cache eviction cannot touch it.
func (ix *FlatIndex) Upsert(chunkID string, vector []float32) error {
	if len(vector) != ix.dim {
		return &domain.DimensionError{Want: ix.dim, Got: len(vector)}
	}

	owned := make([]float32, len(vector))
	copy(owned, vector)

	ix.mu.Lock()
	ix.vectors[chunkID] = owned
	ix.mu.Unlock()
	return nil
}

// Remove deletes the entry for the chunk ID, if present.
func (ix *FlatIndex) Remove(chunkID string) error {
	ix.mu.Lock()
	delete(ix.vectors, chunkID)
	ix.mu.Unlock()
	return nil
}

// Search scans all entries and returns at most k hits with
// score >= minScore, ordered by descending score, ties broken by ascending
// chunk ID for determinism.
func (ix *FlatIndex) Search(query []float32, k int, minScore float64) ([]port.SearchHit, error) {
	if len(query) != ix.dim {
		return nil, &domain.DimensionError{Want: ix.dim, Got: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	hits := make([]port.SearchHit, 0, len(ix.vectors))
	for id, vec := range ix.vectors {
		score := ix.metric.Score(query, vec)
		if score < minScore {
			continue
		}
		hits = append(hits, port.SearchHit{ChunkID: id, Score: score})
	}
	ix.mu.RUnlock()

	sortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Size returns the number of stored entries.
func (ix *FlatIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Entries returns all stored entries ordered by chunk ID. Vectors are
// copies.
func (ix *FlatIndex) Entries() []port.IndexEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := make([]port.IndexEntry, 0, len(ix.vectors))
	for id, vec := range ix.vectors {
		owned := make([]float32, len(vec))
		copy(owned, vec)
		entries = append(entries, port.IndexEntry{ChunkID: id, Vector: owned})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ChunkID < entries[j].ChunkID
	})
	return entries
}

func sortHits(hits []port.SearchHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}
