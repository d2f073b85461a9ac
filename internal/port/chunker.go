package port

import "webrag/internal/domain"

// Chunker splits a document's normalized text into ordered, possibly
// overlapping chunks. Pure: deterministic for identical input and
// configuration, no side effects.
type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}
