package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"webrag/internal/port"
)

// JSONLSource reads one document per line: {"url": ..., "text": ...,
// "metadata": {...}}. Blank lines are skipped.
type JSONLSource struct {
	scanner *bufio.Scanner
	line    int
}

type jsonlRecord struct {
	URL      string            `json:"url"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &JSONLSource{scanner: scanner}
}

func (s *JSONLSource) Next() (port.RawDocument, error) {
	for s.scanner.Scan() {
		s.line++
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return port.RawDocument{}, fmt.Errorf("line %d: %w", s.line, err)
		}
		if rec.URL == "" {
			return port.RawDocument{}, fmt.Errorf("line %d: missing url", s.line)
		}

		return port.RawDocument{
			SourceURL: rec.URL,
			Text:      rec.Text,
			Metadata:  rec.Metadata,
		}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return port.RawDocument{}, err
	}
	return port.RawDocument{}, io.EOF
}
