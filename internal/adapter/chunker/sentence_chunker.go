package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"webrag/config"
	"webrag/internal/domain"
)

// SentenceChunker splits document text into overlapping passages of bounded
// size, preferring sentence and paragraph boundaries and falling back to
// hard character cuts when no boundary fits the budget.
type SentenceChunker struct {
	maxChars     int
	overlapChars int
	minChars     int
}

// NewSentenceChunker validates the chunking configuration and returns a
// chunker. Overlap must be strictly smaller than the chunk budget.
func NewSentenceChunker(cfg config.ChunkingConfig) (*SentenceChunker, error) {
	if cfg.MaxChunkChars <= 0 {
		return nil, &domain.ConfigError{Field: "chunking.max_chunk_chars", Reason: "must be positive"}
	}
	if cfg.OverlapChars < 0 || cfg.OverlapChars >= cfg.MaxChunkChars {
		return nil, &domain.ConfigError{Field: "chunking.overlap_chars", Reason: "must be smaller than max_chunk_chars"}
	}
	if cfg.MinChunkChars < 0 || cfg.MinChunkChars > cfg.MaxChunkChars {
		return nil, &domain.ConfigError{Field: "chunking.min_chunk_chars", Reason: "must be between 0 and max_chunk_chars"}
	}
	return &SentenceChunker{
		maxChars:     cfg.MaxChunkChars,
		overlapChars: cfg.OverlapChars,
		minChars:     cfg.MinChunkChars,
	}, nil
}

// Chunk splits the document's normalized text into ordered chunks. Each
// chunk after the first starts overlapChars before the previous chunk's
// end, so the trailing overlap is repeated verbatim. Deterministic for
// identical input and configuration.
func (c *SentenceChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	text := doc.RawText
	if len(text) == 0 {
		return nil, nil
	}

	boundaries := sentenceBoundaries(text)

	type span struct{ start, end int }
	var spans []span

	start, prevEnd := 0, 0
	for start < len(text) {
		end := cutAt(boundaries, start, prevEnd, start+c.maxChars, c.minChars, len(text))
		spans = append(spans, span{start, end})
		if end >= len(text) {
			break
		}
		prevEnd = end

		next := end - c.overlapChars
		if next <= start {
			next = start + 1 // always make progress
		}
		start = next
	}

	// Interior chunks meet the minimum by construction: boundary cuts
	// require it and hard cuts emit maxChars. Only the trailing chunk can
	// fall short; it is merged into its predecessor instead of being
	// emitted standalone.
	for len(spans) > 1 {
		last := spans[len(spans)-1]
		if last.end-last.start >= c.minChars {
			break
		}
		prev := spans[len(spans)-2]
		prev.end = last.end
		spans = append(spans[:len(spans)-2], prev)
	}

	chunks := make([]domain.Chunk, 0, len(spans))
	for i, sp := range spans {
		chunkText := text[sp.start:sp.end]
		chunks = append(chunks, domain.Chunk{
			ID:          chunkID(doc.ID, sp.start, sp.end),
			DocumentID:  doc.ID,
			Seq:         i,
			Text:        chunkText,
			SpanStart:   sp.start,
			SpanEnd:     sp.end,
			Fingerprint: domain.Fingerprint(chunkText),
		})
	}

	return chunks, nil
}

// cutAt picks the end of a chunk starting at start with budget ending at
// limit: the furthest sentence boundary within the budget, or a hard cut
// at the limit. A usable boundary must advance past the previous chunk's
// end and yield at least minLen characters, otherwise the chunker would
// re-pick the same boundary from successive overlap-shifted starts and
// emit a run of shrinking sub-minimum chunks. The hard cut always
// advances: limit = start + maxChars > prevEnd because overlap is
// strictly smaller than the chunk budget.
func cutAt(boundaries []int, start, prevEnd, limit, minLen, textLen int) int {
	if limit >= textLen {
		return textLen
	}

	best := -1
	for _, b := range boundaries {
		if b <= prevEnd || b-start < minLen {
			continue
		}
		if b > limit {
			break
		}
		best = b
	}
	if best > 0 {
		return best
	}
	return limit
}

// sentenceBoundaries returns the ascending positions just after each
// sentence terminator or paragraph break.
func sentenceBoundaries(text string) []int {
	var out []int
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			// Terminator followed by whitespace or end of text ends a
			// sentence; the boundary sits after the trailing whitespace.
			j := i + 1
			for j < len(text) && (text[j] == '.' || text[j] == '!' || text[j] == '?') {
				j++
			}
			if j >= len(text) || text[j] == ' ' || text[j] == '\n' {
				for j < len(text) && (text[j] == ' ' || text[j] == '\n') {
					j++
				}
				out = append(out, j)
				i = j - 1
			}
		case '\n':
			if i+1 < len(text) && text[i+1] == '\n' {
				j := i + 2
				out = append(out, j)
				i = j - 1
			}
		}
	}
	return out
}

func chunkID(docID string, start, end int) string {
	data := fmt.Sprintf("%s:%d-%d", docID, start, end)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
