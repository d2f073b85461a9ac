package usecase

import (
	"strings"

	"webrag/internal/domain"
)

const passageSeparator = "\n\n"

// AssembleUseCase formats retrieval results into a generation context that
// never exceeds the character budget.
type AssembleUseCase struct {
	maxChars int
}

func NewAssembleUseCase(maxChars int) *AssembleUseCase {
	return &AssembleUseCase{maxChars: maxChars}
}

// Assemble concatenates provenance-prefixed passages in result order until
// the budget runs out. If even the first passage is over budget it is cut
// at the last sentence boundary that fits; later passages that do not fit
// are dropped whole. A zero-result input yields an empty payload.
func (u *AssembleUseCase) Assemble(results []domain.RetrievalResult) domain.ContextPayload {
	var sb strings.Builder
	var passages []domain.Passage

	for _, r := range results {
		prefix := "[" + r.SourceURL + "] "

		budget := u.maxChars - sb.Len()
		if sb.Len() > 0 {
			budget -= len(passageSeparator)
		}

		body := r.Text
		truncated := false
		if len(prefix)+len(body) > budget {
			if len(passages) > 0 {
				break
			}
			body = truncateAtSentence(body, budget-len(prefix))
			if body == "" {
				break
			}
			truncated = true
		}

		if sb.Len() > 0 {
			sb.WriteString(passageSeparator)
		}
		sb.WriteString(prefix)
		sb.WriteString(body)
		// The passage records the text the generator actually sees, which
		// is the truncated body when the first result was cut.
		passages = append(passages, domain.Passage{
			SourceURL: r.SourceURL,
			Text:      body,
			Score:     r.Score,
		})

		if truncated {
			break
		}
	}

	return domain.ContextPayload{
		Text:     sb.String(),
		Chars:    sb.Len(),
		Passages: passages,
	}
}

// truncateAtSentence cuts text to at most limit characters, preferring the
// last sentence end within the limit and falling back to a hard cut.
// Returns empty when the limit leaves no room.
func truncateAtSentence(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}

	cut := 0
	for i := 0; i < limit; i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\n' || text[i+1] == '\t' {
				cut = i + 1
			}
		}
	}
	if cut == 0 {
		cut = limit
	}
	return strings.TrimRight(text[:cut], " \n\t")
}
