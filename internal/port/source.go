package port

// RawDocument is what the external fetch/parse collaborator hands us:
// a source URL, the extracted text, and free-form string metadata.
type RawDocument struct {
	SourceURL string
	Text      string
	Metadata  map[string]string
}

// DocumentSource yields raw documents for ingestion. Next returns io.EOF
// when the source is exhausted.
type DocumentSource interface {
	Next() (RawDocument, error)
}
