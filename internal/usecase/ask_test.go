package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"webrag/internal/adapter/generation"
	"webrag/internal/domain"
	"webrag/internal/port"
	"webrag/internal/retry"
)

func newAskStack(t *testing.T, gen port.Generator) (*testStack, *AskUseCase) {
	t.Helper()
	s := newTestStack(t, defaultRetrieveCfg())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ask := NewAskUseCase(s.retrieve, NewAssembleUseCase(2000), gen, retry.NewPolicy(2, 0), logger)
	return s, ask
}

func TestAskGroundsAnswerOnRetrievedContext(t *testing.T) {
	s, ask := newAskStack(t, generation.NewMockGenerator())
	ctx := context.Background()

	text := "Breakwaters absorb wave energy before it reaches the quay."
	_, _, err := s.ingest.Ingest(ctx, port.RawDocument{
		SourceURL: "https://example.com/marine",
		Text:      text,
	}, false)
	require.NoError(t, err)

	answer, err := ask.Ask(ctx, text, 3)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Text)
	require.NotEmpty(t, answer.Results)
	require.Contains(t, answer.Context.Text, "https://example.com/marine")
}

func TestAskWithNoMatchesStillAnswers(t *testing.T) {
	_, ask := newAskStack(t, generation.NewMockGenerator())

	answer, err := ask.Ask(context.Background(), "question with empty index", 3)
	require.NoError(t, err)
	require.NotEmpty(t, answer.Text)
	require.Empty(t, answer.Results)
	require.Zero(t, answer.Context.Chars)
}

type flakyGenerator struct {
	failures int
	calls    int
}

func (g *flakyGenerator) Generate(_ context.Context, query, _ string) (string, error) {
	g.calls++
	if g.calls <= g.failures {
		return "", &domain.GenerationError{Model: "flaky", Err: errors.New("overloaded")}
	}
	return "recovered answer", nil
}

func (g *flakyGenerator) ModelName() string { return "flaky" }

func TestAskRetriesTransientGenerationFailure(t *testing.T) {
	gen := &flakyGenerator{failures: 1}
	_, ask := newAskStack(t, gen)

	answer, err := ask.Ask(context.Background(), "anything", 3)
	require.NoError(t, err)
	require.Equal(t, "recovered answer", answer.Text)
	require.Equal(t, 2, gen.calls)
}
