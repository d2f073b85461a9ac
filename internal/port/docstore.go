package port

import "webrag/internal/domain"

// DocumentStore persists documents and their chunks. Documents are
// immutable once stored; re-ingestion supersedes rather than mutates.
type DocumentStore interface {
	PutDocument(doc domain.Document) error

	GetDocument(id string) (domain.Document, error)

	// DocumentsBySource returns all live documents ingested from the
	// given source URL, oldest first.
	DocumentsBySource(sourceURL string) ([]domain.Document, error)

	// DeleteDocument removes a document and all chunks derived from it.
	DeleteDocument(id string) error

	PutChunks(chunks []domain.Chunk) error

	GetChunk(id string) (domain.Chunk, error)

	ChunksByDocument(docID string) ([]domain.Chunk, error)

	CountDocuments() (int, error)

	CountChunks() (int, error)
}
