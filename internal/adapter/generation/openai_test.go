package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"webrag/config"
	"webrag/internal/domain"
)

func TestRenderPromptIncludesQueryAndContext(t *testing.T) {
	prompt, err := renderPrompt("what is chunking?", "[https://example.com] Chunking splits text.")
	require.NoError(t, err)
	require.Contains(t, prompt, "what is chunking?")
	require.Contains(t, prompt, "[https://example.com] Chunking splits text.")
}

func TestGenerateSendsPromptAndReturnsAnswer(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		gotPrompt = req.Messages[0].Content

		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "the answer"}}},
		})
	}))
	defer srv.Close()

	g := newGenerator("test-key", srv.URL, config.GenerationConfig{Model: "test-model"})

	answer, err := g.Generate(context.Background(), "my question", "some context")
	require.NoError(t, err)
	require.Equal(t, "the answer", answer)
	require.True(t, strings.Contains(gotPrompt, "my question"))
	require.True(t, strings.Contains(gotPrompt, "some context"))
}

func TestGenerateWrapsAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newGenerator("test-key", srv.URL, config.GenerationConfig{Model: "test-model"})

	_, err := g.Generate(context.Background(), "q", "ctx")
	var genErr *domain.GenerationError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, "test-model", genErr.Model)
}

func TestFromConfig(t *testing.T) {
	g, err := FromConfig(config.GenerationConfig{Provider: "mock"})
	require.NoError(t, err)
	require.Equal(t, "mock", g.ModelName())

	_, err = FromConfig(config.GenerationConfig{Provider: "bogus"})
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
