package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"webrag/internal/domain"
)

func result(url, text string, score float64) domain.RetrievalResult {
	return domain.RetrievalResult{SourceURL: url, Text: text, Score: score}
}

func TestAssembleFormatsPassagesInOrder(t *testing.T) {
	a := NewAssembleUseCase(1000)

	payload := a.Assemble([]domain.RetrievalResult{
		result("https://example.com/a", "First passage.", 0.9),
		result("https://example.com/b", "Second passage.", 0.8),
	})

	expected := "[https://example.com/a] First passage.\n\n[https://example.com/b] Second passage."
	require.Equal(t, expected, payload.Text)
	require.Equal(t, len(expected), payload.Chars)
	require.Len(t, payload.Passages, 2)
	require.Equal(t, "https://example.com/a", payload.Passages[0].SourceURL)
}

func TestAssembleNeverExceedsBudget(t *testing.T) {
	a := NewAssembleUseCase(80)

	payload := a.Assemble([]domain.RetrievalResult{
		result("https://example.com/a", "Short one.", 0.9),
		result("https://example.com/b", strings.Repeat("x", 200), 0.8),
		result("https://example.com/c", "Another short one.", 0.7),
	})

	require.LessOrEqual(t, len(payload.Text), 80)
	require.Len(t, payload.Passages, 1, "a passage that does not fit ends assembly")
}

func TestAssembleTruncatesFirstOverlongResult(t *testing.T) {
	a := NewAssembleUseCase(70)

	long := "First sentence fits fine. Second sentence also fits. Third sentence is past the budget."
	payload := a.Assemble([]domain.RetrievalResult{
		result("https://example.com/a", long, 0.9),
		result("https://example.com/b", "Never included.", 0.8),
	})

	require.LessOrEqual(t, len(payload.Text), 70)
	require.True(t, strings.HasSuffix(payload.Text, "."), "cut lands on a sentence end")
	require.Contains(t, payload.Text, "First sentence fits fine.")
	require.NotContains(t, payload.Text, "Never included")
	require.Len(t, payload.Passages, 1)
}

func TestAssembleTruncatedPassageMatchesContext(t *testing.T) {
	a := NewAssembleUseCase(70)

	long := "First sentence fits fine. Second sentence also fits. Third sentence is past the budget."
	payload := a.Assemble([]domain.RetrievalResult{
		result("https://example.com/a", long, 0.9),
	})

	require.Len(t, payload.Passages, 1)
	got := payload.Passages[0].Text
	require.NotEqual(t, long, got, "passage carries the cut text, not the original")
	require.True(t, strings.HasPrefix(long, got))
	require.Contains(t, payload.Text, got)
	require.Equal(t, "[https://example.com/a] "+got, payload.Text)
}

func TestAssembleHardCutsWhenNoBoundaryFits(t *testing.T) {
	a := NewAssembleUseCase(40)

	payload := a.Assemble([]domain.RetrievalResult{
		result("https://example.com/a", strings.Repeat("y", 200), 0.9),
	})

	require.LessOrEqual(t, len(payload.Text), 40)
	require.NotEmpty(t, payload.Text)
}

func TestAssembleEmptyInput(t *testing.T) {
	a := NewAssembleUseCase(1000)

	payload := a.Assemble(nil)
	require.Empty(t, payload.Text)
	require.Zero(t, payload.Chars)
	require.Empty(t, payload.Passages)
}

func TestAssembleZeroBudget(t *testing.T) {
	a := NewAssembleUseCase(0)

	payload := a.Assemble([]domain.RetrievalResult{
		result("https://example.com/a", "Anything.", 0.9),
	})
	require.Empty(t, payload.Text)
	require.Empty(t, payload.Passages)
}

func TestTruncateAtSentence(t *testing.T) {
	text := "One. Two. Three."

	require.Equal(t, "One. Two.", truncateAtSentence(text, 12))
	require.Equal(t, text, truncateAtSentence(text, 100))
	require.Equal(t, "", truncateAtSentence(text, 0))
	require.Equal(t, "abc", truncateAtSentence("abcdef", 3))
}
