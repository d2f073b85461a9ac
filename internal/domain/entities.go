package domain

import "time"

// Document is an immutable ingested document. Re-scraping the same source
// URL produces a new Document with a new ID; the old one is superseded,
// never mutated.
type Document struct {
	ID         string
	SourceURL  string
	RawText    string
	Metadata   map[string]string
	IngestedAt time.Time
}

// Chunk is a bounded, possibly overlapping span of a document's text.
// SpanStart/SpanEnd index into the normalized document text.
type Chunk struct {
	ID          string
	DocumentID  string
	Seq         int
	Text        string
	SpanStart   int
	SpanEnd     int
	Fingerprint string
}

// Embedding is the cached vector for one fingerprint under one model.
// Never mutated after creation; the index copies the vector on insert.
type Embedding struct {
	Fingerprint string
	Vector      []float32
	ModelID     string
	Dim         int
}

// RetrievalResult is produced per query and not persisted.
type RetrievalResult struct {
	ChunkID     string
	DocumentID  string
	SourceURL   string
	Text        string
	Score       float64
	Fingerprint string
	SpanStart   int
	SpanEnd     int
}

// Passage is one provenance-marked piece of an assembled context.
type Passage struct {
	SourceURL string  `json:"source_url"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}

// ContextPayload is the bounded context handed to the generator.
// Text never exceeds the character budget it was assembled under.
type ContextPayload struct {
	Text     string    `json:"text"`
	Chars    int       `json:"chars"`
	Passages []Passage `json:"passages"`
}
