package port

import "context"

// Generator produces an answer for a query given an assembled context.
// Treated as opaque; failures surface as domain.GenerationError.
type Generator interface {
	Generate(ctx context.Context, query, contextText string) (string, error)

	// ModelName returns the name of the generation model.
	ModelName() string
}
