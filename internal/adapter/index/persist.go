package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"go.etcd.io/bbolt"

	"webrag/internal/domain"
)

// Persisted layout: a vector block bucket (fixed-width little-endian
// float32 arrays) and a parallel metadata bucket, both keyed by the same
// big-endian ordinal. An info record ties the snapshot to its model,
// metric and dimension. Loading validates the two buckets agree row for
// row; any disagreement fails with CorruptIndexError and the service must
// not start.
var (
	bucketVectors = []byte("index_vectors")
	bucketMeta    = []byte("index_meta")
	bucketInfo    = []byte("index_info")
	keyInfo       = []byte("info")
)

const snapshotVersion = 1

// SnapshotEntry is one persisted index row: the vector plus the chunk
// metadata needed to validate and rebuild the index on load.
type SnapshotEntry struct {
	ChunkID     string
	DocumentID  string
	Fingerprint string
	SpanStart   int
	SpanEnd     int
	Vector      []float32
}

type snapshotInfo struct {
	Version int    `json:"version"`
	Dim     int    `json:"dim"`
	Metric  string `json:"metric"`
	ModelID string `json:"model_id"`
	Count   int    `json:"count"`
}

type metaRow struct {
	ChunkID     string `json:"chunk_id"`
	DocumentID  string `json:"document_id"`
	Fingerprint string `json:"fingerprint"`
	SpanStart   int    `json:"span_start"`
	SpanEnd     int    `json:"span_end"`
}

// SaveSnapshot replaces any persisted snapshot with the given entries.
func SaveSnapshot(db *bbolt.DB, modelID, metricName string, dim int, entries []SnapshotEntry) error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVectors, bucketMeta, bucketInfo} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		vectors := tx.Bucket(bucketVectors)
		meta := tx.Bucket(bucketMeta)

		for i, e := range entries {
			if len(e.Vector) != dim {
				return &domain.DimensionError{Want: dim, Got: len(e.Vector)}
			}

			key := ordinalKey(i)
			if err := vectors.Put(key, encodeVector(e.Vector)); err != nil {
				return err
			}

			row, err := json.Marshal(metaRow{
				ChunkID:     e.ChunkID,
				DocumentID:  e.DocumentID,
				Fingerprint: e.Fingerprint,
				SpanStart:   e.SpanStart,
				SpanEnd:     e.SpanEnd,
			})
			if err != nil {
				return err
			}
			if err := meta.Put(key, row); err != nil {
				return err
			}
		}

		info, err := json.Marshal(snapshotInfo{
			Version: snapshotVersion,
			Dim:     dim,
			Metric:  metricName,
			ModelID: modelID,
			Count:   len(entries),
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketInfo).Put(keyInfo, info)
	})
}

// LoadSnapshot reads and validates the persisted snapshot. A database
// without a snapshot returns an empty slice; a snapshot that fails
// validation returns CorruptIndexError.
func LoadSnapshot(db *bbolt.DB, modelID, metricName string, dim int) ([]SnapshotEntry, error) {
	var entries []SnapshotEntry

	err := db.View(func(tx *bbolt.Tx) error {
		infoBucket := tx.Bucket(bucketInfo)
		if infoBucket == nil {
			return nil // fresh database
		}
		infoData := infoBucket.Get(keyInfo)
		if infoData == nil {
			return &domain.CorruptIndexError{Reason: "snapshot info record missing"}
		}

		var info snapshotInfo
		if err := json.Unmarshal(infoData, &info); err != nil {
			return &domain.CorruptIndexError{Reason: "snapshot info unreadable: " + err.Error()}
		}
		if info.Version != snapshotVersion {
			return &domain.CorruptIndexError{Reason: fmt.Sprintf("unsupported snapshot version %d", info.Version)}
		}
		if info.Dim != dim {
			return &domain.CorruptIndexError{Reason: fmt.Sprintf("snapshot dimension %d does not match configured dimension %d", info.Dim, dim)}
		}
		if info.ModelID != modelID {
			return &domain.CorruptIndexError{Reason: fmt.Sprintf("snapshot built with model %q, configured model is %q", info.ModelID, modelID)}
		}
		if info.Metric != metricName {
			return &domain.CorruptIndexError{Reason: fmt.Sprintf("snapshot built with metric %q, configured metric is %q", info.Metric, metricName)}
		}

		vectors := tx.Bucket(bucketVectors)
		meta := tx.Bucket(bucketMeta)
		if vectors == nil || meta == nil {
			return &domain.CorruptIndexError{Reason: "snapshot buckets missing"}
		}
		if vectors.Stats().KeyN != meta.Stats().KeyN {
			return &domain.CorruptIndexError{Reason: fmt.Sprintf("vector count %d does not match metadata row count %d", vectors.Stats().KeyN, meta.Stats().KeyN)}
		}
		if vectors.Stats().KeyN != info.Count {
			return &domain.CorruptIndexError{Reason: fmt.Sprintf("snapshot records %d entries, found %d", info.Count, vectors.Stats().KeyN)}
		}

		return vectors.ForEach(func(k, v []byte) error {
			rowData := meta.Get(k)
			if rowData == nil {
				return &domain.CorruptIndexError{Reason: fmt.Sprintf("metadata row missing for ordinal %d", ordinalOf(k))}
			}

			var row metaRow
			if err := json.Unmarshal(rowData, &row); err != nil {
				return &domain.CorruptIndexError{Reason: fmt.Sprintf("metadata row %d unreadable: %v", ordinalOf(k), err)}
			}

			vec, err := decodeVector(v, dim)
			if err != nil {
				return &domain.CorruptIndexError{Reason: fmt.Sprintf("vector block %d: %v", ordinalOf(k), err)}
			}

			entries = append(entries, SnapshotEntry{
				ChunkID:     row.ChunkID,
				DocumentID:  row.DocumentID,
				Fingerprint: row.Fingerprint,
				SpanStart:   row.SpanStart,
				SpanEnd:     row.SpanEnd,
				Vector:      vec,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func ordinalKey(i int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(i))
	return key
}

func ordinalOf(key []byte) uint64 {
	if len(key) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key)
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte, dim int) ([]float32, error) {
	if len(buf) != 4*dim {
		return nil, fmt.Errorf("expected %d bytes for dimension %d, got %d", 4*dim, dim, len(buf))
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
