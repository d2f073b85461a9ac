package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"webrag/internal/domain"
)

func TestFlatSearchOrdering(t *testing.T) {
	ix, err := NewFlatIndex(2, Cosine{})
	require.NoError(t, err)

	require.NoError(t, ix.Upsert("c1", []float32{1, 0}))
	require.NoError(t, ix.Upsert("c2", []float32{0, 1}))
	require.NoError(t, ix.Upsert("c3", []float32{1, 1}))

	hits, err := ix.Search([]float32{1, 0}, 3, -1)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, "c1", hits[0].ChunkID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-9)
	require.Equal(t, "c3", hits[1].ChunkID)
	require.Equal(t, "c2", hits[2].ChunkID)

	// Scores descend.
	for i := 1; i < len(hits); i++ {
		require.LessOrEqual(t, hits[i].Score, hits[i-1].Score)
	}
}

func TestFlatTieBreakByChunkID(t *testing.T) {
	ix, err := NewFlatIndex(2, Cosine{})
	require.NoError(t, err)

	// Identical vectors under different IDs, inserted out of order.
	require.NoError(t, ix.Upsert("zz", []float32{1, 0}))
	require.NoError(t, ix.Upsert("aa", []float32{1, 0}))
	require.NoError(t, ix.Upsert("mm", []float32{1, 0}))

	hits, err := ix.Search([]float32{1, 0}, 3, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"aa", "mm", "zz"}, []string{hits[0].ChunkID, hits[1].ChunkID, hits[2].ChunkID})
}

func TestFlatMinScoreAndK(t *testing.T) {
	ix, err := NewFlatIndex(2, Cosine{})
	require.NoError(t, err)

	require.NoError(t, ix.Upsert("c1", []float32{1, 0}))
	require.NoError(t, ix.Upsert("c2", []float32{0, 1})) // orthogonal: score 0

	hits, err := ix.Search([]float32{1, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "c1", hits[0].ChunkID)

	hits, err = ix.Search([]float32{1, 0}, 1, -1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = ix.Search([]float32{1, 0}, 0, -1)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestFlatUpsertReplaces(t *testing.T) {
	ix, err := NewFlatIndex(2, Cosine{})
	require.NoError(t, err)

	require.NoError(t, ix.Upsert("c1", []float32{1, 0}))
	require.NoError(t, ix.Upsert("c1", []float32{0, 1}))
	require.Equal(t, 1, ix.Size())

	hits, err := ix.Search([]float32{0, 1}, 1, -1)
	require.NoError(t, err)
	require.Equal(t, "c1", hits[0].ChunkID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestFlatDimensionGuard(t *testing.T) {
	ix, err := NewFlatIndex(3, Cosine{})
	require.NoError(t, err)

	var dimErr *domain.DimensionError
	err = ix.Upsert("c1", []float32{1, 0})
	require.ErrorAs(t, err, &dimErr)
	require.Equal(t, 3, dimErr.Want)
	require.Equal(t, 2, dimErr.Got)
	require.Equal(t, 0, ix.Size(), "failed insert must leave the index unchanged")

	_, err = ix.Search([]float32{1, 0, 0, 0}, 5, -1)
	require.ErrorAs(t, err, &dimErr)
}

func TestFlatRemove(t *testing.T) {
	ix, err := NewFlatIndex(2, Cosine{})
	require.NoError(t, err)

	require.NoError(t, ix.Upsert("c1", []float32{1, 0}))
	require.NoError(t, ix.Remove("c1"))
	require.NoError(t, ix.Remove("missing"))
	require.Equal(t, 0, ix.Size())

	hits, err := ix.Search([]float32{1, 0}, 5, -1)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestFlatCopiesOnInsert(t *testing.T) {
	ix, err := NewFlatIndex(2, Cosine{})
	require.NoError(t, err)

	vec := []float32{1, 0}
	require.NoError(t, ix.Upsert("c1", vec))
	vec[0] = 0
	vec[1] = 1

	hits, err := ix.Search([]float32{1, 0}, 1, -1)
	require.NoError(t, err)
	require.InDelta(t, 1.0, hits[0].Score, 1e-9, "caller mutation must not reach the index")
}

func TestFlatDeterministicSearch(t *testing.T) {
	ix, err := NewFlatIndex(4, Cosine{})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		vec := []float32{float32(i % 7), float32(i % 5), float32(i % 3), 1}
		require.NoError(t, ix.Upsert(fmt.Sprintf("c%02d", i), vec))
	}

	query := []float32{1, 2, 3, 4}
	first, err := ix.Search(query, 10, -1)
	require.NoError(t, err)
	second, err := ix.Search(query, 10, -1)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestNegSquaredEuclidean(t *testing.T) {
	m := NegSquaredEuclidean{}
	require.Equal(t, 0.0, m.Score([]float32{1, 2}, []float32{1, 2}))
	require.Equal(t, -2.0, m.Score([]float32{0, 0}, []float32{1, 1}))

	// Same call sites, same higher-is-better ordering.
	ix, err := NewFlatIndex(2, m)
	require.NoError(t, err)
	require.NoError(t, ix.Upsert("near", []float32{1, 1}))
	require.NoError(t, ix.Upsert("far", []float32{5, 5}))

	hits, err := ix.Search([]float32{1, 1}, 2, -100)
	require.NoError(t, err)
	require.Equal(t, "near", hits[0].ChunkID)
	require.Equal(t, "far", hits[1].ChunkID)
}

func TestMetricByName(t *testing.T) {
	m, err := MetricByName("cosine")
	require.NoError(t, err)
	require.Equal(t, "cosine", m.Name())

	m, err = MetricByName("neg_l2")
	require.NoError(t, err)
	require.Equal(t, "neg_l2", m.Name())

	_, err = MetricByName("dot")
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
