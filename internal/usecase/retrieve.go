package usecase

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"webrag/config"
	"webrag/internal/adapter/cache"
	"webrag/internal/domain"
	"webrag/internal/port"
	"webrag/internal/retry"
)

// RetrieveUseCase answers similarity queries. The index is overfetched by
// a configured factor so near-duplicate suppression still leaves enough
// distinct results to fill top-k.
type RetrieveUseCase struct {
	embedder port.Embedder
	cache    *cache.EmbeddingCache
	index    port.VectorIndex
	store    port.DocumentStore
	policy   retry.Policy
	cfg      config.RetrieveConfig
	logger   *slog.Logger
}

func NewRetrieveUseCase(
	embedder port.Embedder,
	embCache *cache.EmbeddingCache,
	index port.VectorIndex,
	store port.DocumentStore,
	policy retry.Policy,
	cfg config.RetrieveConfig,
	logger *slog.Logger,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder: embedder,
		cache:    embCache,
		index:    index,
		store:    store,
		policy:   policy,
		cfg:      cfg,
		logger:   logger,
	}
}

// ConfiguredMinScore tells Retrieve to use the score threshold from
// configuration, the way a non-positive topK falls back to the configured
// default. NaN never compares meaningfully against a real score, so it
// cannot collide with a caller's explicit threshold.
func ConfiguredMinScore() float64 {
	return math.NaN()
}

// Retrieve returns up to topK results above minScore, best first. An empty
// result set is a valid answer, not an error. Zero topK and a
// ConfiguredMinScore threshold use the configured defaults.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int, minScore float64) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		topK = u.cfg.TopK
	}
	if math.IsNaN(minScore) {
		minScore = u.cfg.MinScore
	}

	normalized := domain.NormalizeText(query)
	if strings.TrimSpace(normalized) == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(u.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	vector, err := u.queryVector(ctx, normalized)
	if err != nil {
		return nil, err
	}

	hits, err := u.index.Search(vector, topK*u.cfg.OverfetchFactor, minScore)
	if err != nil {
		return nil, err
	}

	results := u.resolve(hits)
	results = suppressNearDuplicates(results)
	if len(results) > topK {
		results = results[:topK]
	}

	u.logger.Debug("retrieval complete",
		"candidates", len(hits),
		"results", len(results))
	return results, nil
}

// queryVector embeds the query through the shared cache, retrying
// transient provider failures.
func (u *RetrieveUseCase) queryVector(ctx context.Context, normalized string) ([]float32, error) {
	fingerprint := domain.Fingerprint(normalized)

	var vector []float32
	err := u.policy.Do(ctx, func(ctx context.Context) error {
		emb, err := u.cache.GetOrCompute(ctx, fingerprint, normalized, u.embedder.ModelName(), func(ctx context.Context, text string) ([]float32, error) {
			vectors, err := u.embedder.Embed(ctx, []string{text})
			if err != nil {
				return nil, err
			}
			return vectors[0], nil
		})
		if err != nil {
			return err
		}
		vector = emb.Vector
		return nil
	})
	return vector, err
}

// resolve joins index hits with stored chunk and document metadata. Hits
// whose chunk or document has since been removed are dropped.
func (u *RetrieveUseCase) resolve(hits []port.SearchHit) []domain.RetrievalResult {
	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		chunk, err := u.store.GetChunk(hit.ChunkID)
		if err != nil {
			continue
		}
		doc, err := u.store.GetDocument(chunk.DocumentID)
		if err != nil {
			continue
		}
		results = append(results, domain.RetrievalResult{
			ChunkID:     chunk.ID,
			DocumentID:  chunk.DocumentID,
			SourceURL:   doc.SourceURL,
			Text:        chunk.Text,
			Score:       hit.Score,
			Fingerprint: chunk.Fingerprint,
			SpanStart:   chunk.SpanStart,
			SpanEnd:     chunk.SpanEnd,
		})
	}
	return results
}

// suppressNearDuplicates keeps the best-scoring representative of each
// duplicate group: same content fingerprint, or overlapping spans within
// one document. Input order is best first, so earlier results win.
func suppressNearDuplicates(results []domain.RetrievalResult) []domain.RetrievalResult {
	kept := make([]domain.RetrievalResult, 0, len(results))
	seenFingerprints := make(map[string]bool)

	for _, r := range results {
		if seenFingerprints[r.Fingerprint] {
			continue
		}
		overlaps := false
		for _, k := range kept {
			if k.DocumentID == r.DocumentID && spansOverlap(k, r) {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		seenFingerprints[r.Fingerprint] = true
		kept = append(kept, r)
	}
	return kept
}

func spansOverlap(a, b domain.RetrievalResult) bool {
	return a.SpanStart < b.SpanEnd && b.SpanStart < a.SpanEnd
}
