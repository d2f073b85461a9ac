package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"webrag/config"
	"webrag/internal/domain"
	"webrag/internal/port"
)

// FromConfig selects an embedder by provider name.
func FromConfig(cfg config.EmbeddingConfig) (port.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "ollama":
		return NewOllamaEmbedder(cfg)
	case "mock":
		return NewMockEmbedder(cfg.Dimension), nil
	default:
		return nil, &domain.ConfigError{
			Field:  "embedding.provider",
			Reason: fmt.Sprintf("unknown provider %q", cfg.Provider),
		}
	}
}

// OpenAIEmbedder calls any OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	batchSize int
	client    *http.Client
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAIEmbedder builds an embedder against api.openai.com.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, &domain.ConfigError{
			Field:  "embedding.api_key_env",
			Reason: fmt.Sprintf("environment variable %s is not set", cfg.APIKeyEnv),
		}
	}
	return newEmbedder(apiKey, baseURL, cfg), nil
}

// NewOllamaEmbedder builds an embedder against a local Ollama server,
// which speaks the same wire format without authentication.
func NewOllamaEmbedder(cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	return newEmbedder("ollama", baseURL, cfg), nil
}

func newEmbedder(apiKey, baseURL string, cfg config.EmbeddingConfig) *OpenAIEmbedder {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OpenAIEmbedder{
		apiKey:    apiKey,
		model:     cfg.Model,
		baseURL:   baseURL,
		dimension: cfg.Dimension,
		batchSize: batchSize,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var all [][]float32
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, &domain.TimeoutError{Op: "embed", Err: err}
			}
			return nil, &domain.EmbeddingError{Model: e.model, Err: err}
		}
		all = append(all, vectors...)
	}
	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	jsonData, err := json.Marshal(embeddingRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", preview, err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embResp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		if len(data.Embedding) != e.dimension {
			return nil, &domain.DimensionError{Want: e.dimension, Got: len(data.Embedding)}
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// MockEmbedder produces deterministic unit vectors derived from the text
// content. Identical texts always map to identical vectors, so exact
// self-matches score 1.0 under cosine similarity. Useful for tests and
// offline runs.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = deterministicVector(text, e.dimension)
	}
	return vectors, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}

// deterministicVector seeds a linear congruential generator from the text
// hash and normalizes the result to unit length.
func deterministicVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))
	state := binary.BigEndian.Uint64(sum[:8])

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		state = state*6364136223846793005 + 1442695040888963407
		// Map the top bits to [-1, 1).
		vec[i] = float32(int64(state>>11))/float32(1<<52) - 1
		norm += float64(vec[i]) * float64(vec[i])
	}

	if norm == 0 {
		vec[0] = 1
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
