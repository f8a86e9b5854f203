package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/aidetector/internal/llm"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		ollamaURL   string
		apiKey      string
		expectError bool
	}{
		{name: "default values", ollamaURL: "", apiKey: ""},
		{name: "custom URL with key", ollamaURL: "http://custom-ollama:11434", apiKey: "sk-test"},
		{name: "invalid URL", ollamaURL: "://invalid-url", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.ollamaURL, tt.apiKey)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.timeout != DefaultTimeout {
				t.Errorf("Expected timeout %v, got %v", DefaultTimeout, client.timeout)
			}
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, "sk-test")
	require.NoError(t, err)
	return client
}

func TestComplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json", req["format"])
		assert.Equal(t, false, req["stream"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":" {\"aiProbability\": 12} "},"done":true}` + "\n"))
	})

	content, err := client.Complete(context.Background(), llm.CompletionRequest{
		Model:  "llama3.2",
		System: "system prompt",
		Prompt: "user prompt",
		JSON:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"aiProbability": 12}`, content)
}

func TestCompleteServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not loaded"}`))
	})

	_, err := client.Complete(context.Background(), llm.CompletionRequest{Model: "llama3.2", Prompt: "x"})
	assert.Error(t, err)
}

func TestEmbed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.5,-0.25,1]]}`))
	})

	vec, err := client.Embed(context.Background(), "nomic-embed-text", "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.25, 1}, vec)
}

func TestListModels(t *testing.T) {
	t.Run("array listing", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			w.Write([]byte(`{"models":[{"name":"llama3.2","model":"llama3.2"}]}`))
		})

		models, err := client.ListModels(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"llama3.2"}, models)
	})

	t.Run("missing listing", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		})

		_, err := client.ListModels(context.Background())
		assert.ErrorIs(t, err, llm.ErrUnrecognizedListing)
	})
}
