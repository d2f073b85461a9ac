package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"webrag/internal/domain"
)

var (
	bucketDocs       = []byte("docs")
	bucketChunks     = []byte("chunks")
	bucketDocChunks  = []byte("doc_chunks")
	bucketSourceDocs = []byte("source_docs")
)

// BoltStore persists documents and chunks in BoltDB. It shares the
// database file with the index snapshot; the service owns the handle.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore prepares the document buckets on an open database.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketDocs, bucketChunks, bucketDocChunks, bucketSourceDocs}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

type docMeta struct {
	SourceURL  string            `json:"source_url"`
	RawText    string            `json:"raw_text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	IngestedAt int64             `json:"ingested_at"`
}

type chunkMeta struct {
	DocumentID  string `json:"document_id"`
	Seq         int    `json:"seq"`
	Text        string `json:"text"`
	SpanStart   int    `json:"span_start"`
	SpanEnd     int    `json:"span_end"`
	Fingerprint string `json:"fingerprint"`
}

func (s *BoltStore) PutDocument(doc domain.Document) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := docMeta{
			SourceURL:  doc.SourceURL,
			RawText:    doc.RawText,
			Metadata:   doc.Metadata,
			IngestedAt: doc.IngestedAt.Unix(),
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Put([]byte(doc.ID), data); err != nil {
			return err
		}
		return appendSourceDoc(tx, doc.SourceURL, doc.ID)
	})
}

func (s *BoltStore) GetDocument(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document not found: %s", id)
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = domain.Document{
			ID:         id,
			SourceURL:  meta.SourceURL,
			RawText:    meta.RawText,
			Metadata:   meta.Metadata,
			IngestedAt: time.Unix(meta.IngestedAt, 0).UTC(),
		}
		return nil
	})
	return doc, err
}

// DocumentsBySource returns all live documents for the source URL in
// ingestion order.
func (s *BoltStore) DocumentsBySource(sourceURL string) ([]domain.Document, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSourceDocs).Get([]byte(sourceURL))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &ids)
	})
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.GetDocument(id)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DeleteDocument removes the document, its chunks, and its source listing.
func (s *BoltStore) DeleteDocument(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docData := tx.Bucket(bucketDocs).Get([]byte(id))
		if docData == nil {
			return nil
		}
		var meta docMeta
		if err := json.Unmarshal(docData, &meta); err != nil {
			return err
		}

		var chunkIDs []string
		if data := tx.Bucket(bucketDocChunks).Get([]byte(id)); data != nil {
			if err := json.Unmarshal(data, &chunkIDs); err != nil {
				return err
			}
		}
		for _, chunkID := range chunkIDs {
			if err := tx.Bucket(bucketChunks).Delete([]byte(chunkID)); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketDocChunks).Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Delete([]byte(id)); err != nil {
			return err
		}
		return removeSourceDoc(tx, meta.SourceURL, id)
	})
}

func (s *BoltStore) PutChunks(chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		perDoc := make(map[string][]string)
		for _, chunk := range chunks {
			meta := chunkMeta{
				DocumentID:  chunk.DocumentID,
				Seq:         chunk.Seq,
				Text:        chunk.Text,
				SpanStart:   chunk.SpanStart,
				SpanEnd:     chunk.SpanEnd,
				Fingerprint: chunk.Fingerprint,
			}
			data, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			if err := tx.Bucket(bucketChunks).Put([]byte(chunk.ID), data); err != nil {
				return err
			}
			perDoc[chunk.DocumentID] = append(perDoc[chunk.DocumentID], chunk.ID)
		}

		for docID, ids := range perDoc {
			var existing []string
			if data := tx.Bucket(bucketDocChunks).Get([]byte(docID)); data != nil {
				if err := json.Unmarshal(data, &existing); err != nil {
					return err
				}
			}
			existing = append(existing, ids...)
			data, err := json.Marshal(existing)
			if err != nil {
				return err
			}
			if err := tx.Bucket(bucketDocChunks).Put([]byte(docID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("chunk not found: %s", id)
		}
		var meta chunkMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		chunk = domain.Chunk{
			ID:          id,
			DocumentID:  meta.DocumentID,
			Seq:         meta.Seq,
			Text:        meta.Text,
			SpanStart:   meta.SpanStart,
			SpanEnd:     meta.SpanEnd,
			Fingerprint: meta.Fingerprint,
		}
		return nil
	})
	return chunk, err
}

func (s *BoltStore) ChunksByDocument(docID string) ([]domain.Chunk, error) {
	var chunkIDs []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketDocChunks).Get([]byte(docID)); data != nil {
			return json.Unmarshal(data, &chunkIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		chunk, err := s.GetChunk(id)
		if err != nil {
			continue
		}
		chunks = append(chunks, chunk)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Seq < chunks[j].Seq })
	return chunks, nil
}

func (s *BoltStore) CountDocuments() (int, error) {
	return s.countKeys(bucketDocs)
}

func (s *BoltStore) CountChunks() (int, error) {
	return s.countKeys(bucketChunks)
}

func (s *BoltStore) countKeys(bucket []byte) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucket).Stats().KeyN
		return nil
	})
	return count, err
}

func appendSourceDoc(tx *bbolt.Tx, sourceURL, docID string) error {
	var ids []string
	if data := tx.Bucket(bucketSourceDocs).Get([]byte(sourceURL)); data != nil {
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if id == docID {
			return nil
		}
	}
	ids = append(ids, docID)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketSourceDocs).Put([]byte(sourceURL), data)
}

func removeSourceDoc(tx *bbolt.Tx, sourceURL, docID string) error {
	var ids []string
	data := tx.Bucket(bucketSourceDocs).Get([]byte(sourceURL))
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}

	filtered := ids[:0]
	for _, id := range ids {
		if id != docID {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == 0 {
		return tx.Bucket(bucketSourceDocs).Delete([]byte(sourceURL))
	}
	out, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketSourceDocs).Put([]byte(sourceURL), out)
}
