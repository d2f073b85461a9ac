package port

// SearchHit is one nearest-neighbor match. Scores are always
// higher-is-better regardless of the underlying metric.
type SearchHit struct {
	ChunkID string
	Score   float64
}

// IndexEntry is one stored vector, exposed for snapshotting.
type IndexEntry struct {
	ChunkID string
	Vector  []float32
}

// VectorIndex stores vectors keyed by chunk ID and answers
// nearest-neighbor queries. All vectors in one index share a dimension;
// mismatches fail with domain.DimensionError and leave the index
// unchanged.
type VectorIndex interface {
	// Upsert inserts the vector or replaces an existing one for the same
	// chunk ID. The index keeps its own copy of the vector.
	Upsert(chunkID string, vector []float32) error

	// Remove deletes the entry for the chunk ID, if present.
	Remove(chunkID string) error

	// Search returns at most k hits with score >= minScore, ordered by
	// descending score, ties broken by ascending chunk ID.
	Search(query []float32, k int, minScore float64) ([]SearchHit, error)

	// Size returns the number of stored entries.
	Size() int

	// Entries returns all stored entries ordered by chunk ID, for
	// persistence. Vectors are copies.
	Entries() []IndexEntry
}
