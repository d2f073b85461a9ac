package domain

import "fmt"

// ConfigError reports an invalid configuration value, detected eagerly at
// construction time. Never retryable.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// DimensionError reports a vector whose length does not match the index
// dimension. Never retryable; the failing operation leaves no state behind.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Want, e.Got)
}

// EmbeddingError wraps a failure of the embedding collaborator.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed (model %s): %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// TimeoutError reports a collaborator call that exceeded its deadline or
// was cancelled. No partial state is committed on timeout.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// CorruptIndexError means persisted index state failed validation on load.
// The service must not start with a partially valid index.
type CorruptIndexError struct {
	Reason string
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("corrupt index: %s", e.Reason)
}

// GenerationError wraps a failure of the generation collaborator. Opaque,
// passed through to the caller.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (model %s): %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
