package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"webrag/internal/domain"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "test.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewBoltStore(db)
	require.NoError(t, err)
	return s
}

func sampleDoc(id, sourceURL string) domain.Document {
	return domain.Document{
		ID:         id,
		SourceURL:  sourceURL,
		RawText:    "First sentence. Second sentence.",
		Metadata:   map[string]string{"title": "sample"},
		IngestedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	s := openTestStore(t)

	doc := sampleDoc("d1", "https://example.com/a")
	require.NoError(t, s.PutDocument(doc))

	got, err := s.GetDocument("d1")
	require.NoError(t, err)
	require.Equal(t, doc, got)

	_, err = s.GetDocument("missing")
	require.Error(t, err)
}

func TestDocumentsBySourceOrder(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutDocument(sampleDoc("d1", "https://example.com/a")))
	require.NoError(t, s.PutDocument(sampleDoc("d2", "https://example.com/a")))
	require.NoError(t, s.PutDocument(sampleDoc("d3", "https://example.com/b")))

	docs, err := s.DocumentsBySource("https://example.com/a")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "d1", docs[0].ID)
	require.Equal(t, "d2", docs[1].ID)

	docs, err = s.DocumentsBySource("https://example.com/none")
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestChunkRoundTripAndOrdering(t *testing.T) {
	s := openTestStore(t)

	chunks := []domain.Chunk{
		{ID: "c2", DocumentID: "d1", Seq: 1, Text: "second", SpanStart: 10, SpanEnd: 20, Fingerprint: "fp2"},
		{ID: "c1", DocumentID: "d1", Seq: 0, Text: "first", SpanStart: 0, SpanEnd: 10, Fingerprint: "fp1"},
	}
	require.NoError(t, s.PutChunks(chunks))

	got, err := s.GetChunk("c1")
	require.NoError(t, err)
	require.Equal(t, chunks[1], got)

	byDoc, err := s.ChunksByDocument("d1")
	require.NoError(t, err)
	require.Len(t, byDoc, 2)
	require.Equal(t, 0, byDoc[0].Seq)
	require.Equal(t, 1, byDoc[1].Seq)
}

func TestDeleteDocumentRemovesChunks(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.PutDocument(sampleDoc("d1", "https://example.com/a")))
	require.NoError(t, s.PutChunks([]domain.Chunk{
		{ID: "c1", DocumentID: "d1", Seq: 0, Text: "first", Fingerprint: "fp1"},
		{ID: "c2", DocumentID: "d1", Seq: 1, Text: "second", Fingerprint: "fp2"},
	}))

	require.NoError(t, s.DeleteDocument("d1"))

	_, err := s.GetDocument("d1")
	require.Error(t, err)
	_, err = s.GetChunk("c1")
	require.Error(t, err)

	docs, err := s.DocumentsBySource("https://example.com/a")
	require.NoError(t, err)
	require.Empty(t, docs)

	// Deleting an unknown document is a no-op.
	require.NoError(t, s.DeleteDocument("missing"))
}

func TestCounts(t *testing.T) {
	s := openTestStore(t)

	n, err := s.CountDocuments()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	require.NoError(t, s.PutDocument(sampleDoc("d1", "https://example.com/a")))
	require.NoError(t, s.PutChunks([]domain.Chunk{
		{ID: "c1", DocumentID: "d1", Seq: 0, Text: "first", Fingerprint: "fp1"},
		{ID: "c2", DocumentID: "d1", Seq: 1, Text: "second", Fingerprint: "fp2"},
	}))

	n, err = s.CountDocuments()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.CountChunks()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
