package usecase

import (
	"context"
	"log/slog"

	"webrag/internal/domain"
	"webrag/internal/port"
	"webrag/internal/retry"
)

// Answer carries the generated text together with the retrieval evidence
// it was grounded on.
type Answer struct {
	Text    string                   `json:"text"`
	Context domain.ContextPayload    `json:"context"`
	Results []domain.RetrievalResult `json:"results"`
}

// AskUseCase chains retrieval, context assembly and generation.
type AskUseCase struct {
	retrieve  *RetrieveUseCase
	assemble  *AssembleUseCase
	generator port.Generator
	policy    retry.Policy
	logger    *slog.Logger
}

func NewAskUseCase(
	retrieve *RetrieveUseCase,
	assemble *AssembleUseCase,
	generator port.Generator,
	policy retry.Policy,
	logger *slog.Logger,
) *AskUseCase {
	return &AskUseCase{
		retrieve:  retrieve,
		assemble:  assemble,
		generator: generator,
		policy:    policy,
		logger:    logger,
	}
}

// Ask answers the query from indexed content. Retrieval coming back empty
// is not an error; the generator is told there is no context and answers
// accordingly.
func (u *AskUseCase) Ask(ctx context.Context, query string, topK int) (Answer, error) {
	results, err := u.retrieve.Retrieve(ctx, query, topK, ConfiguredMinScore())
	if err != nil {
		return Answer{}, err
	}

	payload := u.assemble.Assemble(results)

	var text string
	err = u.policy.Do(ctx, func(ctx context.Context) error {
		var genErr error
		text, genErr = u.generator.Generate(ctx, query, payload.Text)
		return genErr
	})
	if err != nil {
		return Answer{}, err
	}

	u.logger.Info("question answered",
		"results", len(results),
		"context_chars", payload.Chars,
		"model", u.generator.ModelName())
	return Answer{Text: text, Context: payload, Results: results}, nil
}
