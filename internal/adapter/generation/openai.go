package generation

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/template"
	"time"

	"webrag/config"
	"webrag/internal/domain"
	"webrag/internal/port"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

var answerTemplate = template.Must(
	template.ParseFS(promptTemplates, "templates/answer_prompt.txt"))

type promptData struct {
	Query   string
	Context string
}

// FromConfig selects a generator by provider name.
func FromConfig(cfg config.GenerationConfig) (port.Generator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIGenerator(cfg)
	case "ollama":
		return NewOllamaGenerator(cfg)
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, &domain.ConfigError{
			Field:  "generation.provider",
			Reason: fmt.Sprintf("unknown provider %q", cfg.Provider),
		}
	}
}

// OpenAIGenerator answers queries through an OpenAI-compatible chat
// completions endpoint.
type OpenAIGenerator struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	client      *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewOpenAIGenerator(cfg config.GenerationConfig) (*OpenAIGenerator, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, &domain.ConfigError{
			Field:  "generation.api_key_env",
			Reason: fmt.Sprintf("environment variable %s is not set", cfg.APIKeyEnv),
		}
	}
	return newGenerator(apiKey, baseURL, cfg), nil
}

func NewOllamaGenerator(cfg config.GenerationConfig) (*OpenAIGenerator, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	return newGenerator("ollama", baseURL, cfg), nil
}

func newGenerator(apiKey, baseURL string, cfg config.GenerationConfig) *OpenAIGenerator {
	return &OpenAIGenerator{
		apiKey:      apiKey,
		model:       cfg.Model,
		baseURL:     baseURL,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: 120 * time.Second},
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, query, contextText string) (string, error) {
	prompt, err := renderPrompt(query, contextText)
	if err != nil {
		return "", &domain.GenerationError{Model: g.model, Err: err}
	}

	answer, err := g.complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", &domain.TimeoutError{Op: "generate", Err: err}
		}
		return "", &domain.GenerationError{Model: g.model, Err: err}
	}
	return answer, nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, prompt string) (string, error) {
	jsonData, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("API returned no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) ModelName() string {
	return g.model
}

func renderPrompt(query, contextText string) (string, error) {
	var buf bytes.Buffer
	err := answerTemplate.Execute(&buf, promptData{Query: query, Context: contextText})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

// MockGenerator echoes the query and context size. Useful for tests and
// offline runs.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (g *MockGenerator) Generate(_ context.Context, query, contextText string) (string, error) {
	return fmt.Sprintf("mock answer for %q (%d context chars)", query, len(contextText)), nil
}

func (g *MockGenerator) ModelName() string {
	return "mock"
}
