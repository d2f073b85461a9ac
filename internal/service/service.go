package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"

	"webrag/config"
	"webrag/internal/adapter/cache"
	"webrag/internal/adapter/chunker"
	"webrag/internal/adapter/index"
	"webrag/internal/adapter/store"
	"webrag/internal/domain"
	"webrag/internal/port"
	"webrag/internal/retry"
	"webrag/internal/usecase"
)

// Service wires the retrieval stack together: storage, cache, index and
// the use cases on top. One service owns one database file.
type Service struct {
	cfg      *config.Config
	db       *bbolt.DB
	store    *store.BoltStore
	index    port.VectorIndex
	cache    *cache.EmbeddingCache
	embedder port.Embedder
	logger   *slog.Logger

	ingest   *usecase.IngestUseCase
	retrieve *usecase.RetrieveUseCase
	assemble *usecase.AssembleUseCase
	ask      *usecase.AskUseCase
}

// New opens the database under rootDir, restores the persisted index and
// assembles the use cases. A snapshot that fails validation aborts the
// start; the caller decides whether to clear and rebuild.
func New(rootDir string, cfg *config.Config, embedder port.Embedder, generator port.Generator, logger *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := config.EnsureDataDir(rootDir); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(config.IndexDBPath(rootDir), 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	svc, err := build(cfg, db, embedder, generator, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return svc, nil
}

func build(cfg *config.Config, db *bbolt.DB, embedder port.Embedder, generator port.Generator, logger *slog.Logger) (*Service, error) {
	boltStore, err := store.NewBoltStore(db)
	if err != nil {
		return nil, err
	}

	metric, err := index.MetricByName(cfg.Index.Metric)
	if err != nil {
		return nil, err
	}

	var vecIndex port.VectorIndex
	if cfg.Index.Approximate {
		vecIndex, err = index.NewIVFIndex(embedder.Dimension(), metric, cfg.Index.IVFCells, cfg.Index.IVFProbes)
	} else {
		vecIndex, err = index.NewFlatIndex(embedder.Dimension(), metric)
	}
	if err != nil {
		return nil, err
	}

	embCache, err := cache.NewEmbeddingCache(cfg.Cache.Capacity)
	if err != nil {
		return nil, err
	}

	chk, err := chunker.NewSentenceChunker(cfg.Chunking)
	if err != nil {
		return nil, err
	}

	if err := restoreIndex(db, boltStore, vecIndex, embedder, metric.Name(), logger); err != nil {
		return nil, err
	}

	policy := retry.NewPolicy(cfg.Retry.MaxAttempts, time.Duration(cfg.Retry.InitialBackoffMS)*time.Millisecond)

	ingest := usecase.NewIngestUseCase(chk, embedder, embCache, vecIndex, boltStore, logger)
	retrieveUC := usecase.NewRetrieveUseCase(embedder, embCache, vecIndex, boltStore, policy, cfg.Retrieve, logger)
	assemble := usecase.NewAssembleUseCase(cfg.Assemble.MaxContextChars)
	ask := usecase.NewAskUseCase(retrieveUC, assemble, generator, policy, logger)

	return &Service{
		cfg:      cfg,
		db:       db,
		store:    boltStore,
		index:    vecIndex,
		cache:    embCache,
		embedder: embedder,
		logger:   logger,
		ingest:   ingest,
		retrieve: retrieveUC,
		assemble: assemble,
		ask:      ask,
	}, nil
}

// restoreIndex loads the persisted snapshot and rebuilds the in-memory
// index. Every snapshot row must reference a stored chunk; a dangling row
// means the metadata table and vector block drifted apart.
func restoreIndex(db *bbolt.DB, boltStore *store.BoltStore, vecIndex port.VectorIndex, embedder port.Embedder, metricName string, logger *slog.Logger) error {
	entries, err := index.LoadSnapshot(db, embedder.ModelName(), metricName, embedder.Dimension())
	if err != nil {
		return err
	}

	for _, e := range entries {
		if _, err := boltStore.GetChunk(e.ChunkID); err != nil {
			return &domain.CorruptIndexError{Reason: fmt.Sprintf("snapshot references unknown chunk %s", e.ChunkID)}
		}
		if err := vecIndex.Upsert(e.ChunkID, e.Vector); err != nil {
			return err
		}
	}

	if len(entries) > 0 {
		logger.Info("index restored", "entries", len(entries))
	}
	return nil
}

// Close snapshots the index and releases the database.
func (s *Service) Close() error {
	entries := make([]index.SnapshotEntry, 0, s.index.Size())
	for _, e := range s.index.Entries() {
		chunk, err := s.store.GetChunk(e.ChunkID)
		if err != nil {
			s.logger.Warn("skipping index entry without stored chunk", "chunk_id", e.ChunkID)
			continue
		}
		entries = append(entries, index.SnapshotEntry{
			ChunkID:     e.ChunkID,
			DocumentID:  chunk.DocumentID,
			Fingerprint: chunk.Fingerprint,
			SpanStart:   chunk.SpanStart,
			SpanEnd:     chunk.SpanEnd,
			Vector:      e.Vector,
		})
	}

	metric, err := index.MetricByName(s.cfg.Index.Metric)
	if err != nil {
		s.db.Close()
		return err
	}
	if err := index.SaveSnapshot(s.db, s.embedder.ModelName(), metric.Name(), s.embedder.Dimension(), entries); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

func (s *Service) Ingest(ctx context.Context, raw port.RawDocument, replace bool) (domain.Document, int, error) {
	return s.ingest.Ingest(ctx, raw, replace)
}

func (s *Service) IngestAll(ctx context.Context, src port.DocumentSource, replace bool, onDoc func(doc domain.Document, chunks int)) (int, int, error) {
	return s.ingest.IngestAll(ctx, src, replace, onDoc)
}

func (s *Service) Retrieve(ctx context.Context, query string, topK int, minScore float64) ([]domain.RetrievalResult, error) {
	return s.retrieve.Retrieve(ctx, query, topK, minScore)
}

func (s *Service) Ask(ctx context.Context, query string, topK int) (usecase.Answer, error) {
	return s.ask.Ask(ctx, query, topK)
}

// Stats summarizes the service state for reporting.
type Stats struct {
	Documents     int    `json:"documents"`
	Chunks        int    `json:"chunks"`
	IndexEntries  int    `json:"index_entries"`
	CachedVectors int    `json:"cached_vectors"`
	CacheComputes int64  `json:"cache_computes"`
	EmbeddingDim  int    `json:"embedding_dim"`
	Model         string `json:"model"`
}

func (s *Service) Stats() (Stats, error) {
	docs, err := s.store.CountDocuments()
	if err != nil {
		return Stats{}, err
	}
	chunks, err := s.store.CountChunks()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Documents:     docs,
		Chunks:        chunks,
		IndexEntries:  s.index.Size(),
		CachedVectors: s.cache.Len(),
		CacheComputes: s.cache.Computes(),
		EmbeddingDim:  s.embedder.Dimension(),
		Model:         s.embedder.ModelName(),
	}, nil
}
