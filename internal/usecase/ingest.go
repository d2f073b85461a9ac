package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"webrag/internal/adapter/cache"
	"webrag/internal/domain"
	"webrag/internal/port"
)

// IngestUseCase turns raw documents into chunked, embedded, indexed
// content. Identical text never re-embeds: the cache keys on content
// fingerprint, so a reused embedding still gets its own index entry per
// chunk.
type IngestUseCase struct {
	chunker  port.Chunker
	embedder port.Embedder
	cache    *cache.EmbeddingCache
	index    port.VectorIndex
	store    port.DocumentStore
	logger   *slog.Logger
}

func NewIngestUseCase(
	chunker port.Chunker,
	embedder port.Embedder,
	embCache *cache.EmbeddingCache,
	index port.VectorIndex,
	store port.DocumentStore,
	logger *slog.Logger,
) *IngestUseCase {
	return &IngestUseCase{
		chunker:  chunker,
		embedder: embedder,
		cache:    embCache,
		index:    index,
		store:    store,
		logger:   logger,
	}
}

// Ingest stores one raw document and indexes its chunks. With replace set,
// earlier documents from the same source URL are removed first; otherwise
// both versions stay retrievable.
func (u *IngestUseCase) Ingest(ctx context.Context, raw port.RawDocument, replace bool) (domain.Document, int, error) {
	if replace {
		if err := u.removeBySource(raw.SourceURL); err != nil {
			return domain.Document{}, 0, err
		}
	}

	doc := domain.Document{
		ID:         uuid.NewString(),
		SourceURL:  raw.SourceURL,
		RawText:    domain.NormalizeText(raw.Text),
		Metadata:   raw.Metadata,
		IngestedAt: time.Now().UTC(),
	}

	chunks, err := u.chunker.Chunk(doc)
	if err != nil {
		return domain.Document{}, 0, err
	}

	for _, chunk := range chunks {
		emb, err := u.cache.GetOrCompute(ctx, chunk.Fingerprint, chunk.Text, u.embedder.ModelName(), u.embedOne)
		if err != nil {
			return domain.Document{}, 0, err
		}
		if err := u.index.Upsert(chunk.ID, emb.Vector); err != nil {
			return domain.Document{}, 0, err
		}
	}

	if err := u.store.PutDocument(doc); err != nil {
		return domain.Document{}, 0, err
	}
	if err := u.store.PutChunks(chunks); err != nil {
		return domain.Document{}, 0, err
	}

	u.logger.Info("document ingested",
		"source_url", doc.SourceURL,
		"document_id", doc.ID,
		"chunks", len(chunks))
	return doc, len(chunks), nil
}

// IngestAll drains a document source, reporting progress through onDoc if
// set. Returns document and chunk totals.
func (u *IngestUseCase) IngestAll(ctx context.Context, src port.DocumentSource, replace bool, onDoc func(doc domain.Document, chunks int)) (int, int, error) {
	docs, totalChunks := 0, 0
	for {
		raw, err := src.Next()
		if errors.Is(err, io.EOF) {
			return docs, totalChunks, nil
		}
		if err != nil {
			return docs, totalChunks, err
		}

		doc, n, err := u.Ingest(ctx, raw, replace)
		if err != nil {
			return docs, totalChunks, err
		}
		docs++
		totalChunks += n
		if onDoc != nil {
			onDoc(doc, n)
		}
	}
}

func (u *IngestUseCase) embedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := u.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, &domain.EmbeddingError{Model: u.embedder.ModelName(), Err: errors.New("embedder returned wrong vector count")}
	}
	return vectors[0], nil
}

func (u *IngestUseCase) removeBySource(sourceURL string) error {
	docs, err := u.store.DocumentsBySource(sourceURL)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		chunks, err := u.store.ChunksByDocument(doc.ID)
		if err != nil {
			return err
		}
		for _, chunk := range chunks {
			if err := u.index.Remove(chunk.ID); err != nil {
				return err
			}
		}
		if err := u.store.DeleteDocument(doc.ID); err != nil {
			return err
		}
		u.logger.Info("superseded document removed",
			"source_url", sourceURL,
			"document_id", doc.ID)
	}
	return nil
}
