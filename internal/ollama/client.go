package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/zombar/aidetector/internal/llm"
)

const (
	DefaultURL     = "http://localhost:11434"
	DefaultTimeout = 360 * time.Second
)

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	timeout time.Duration
}

// bearerTransport attaches the caller credential for Ollama instances behind an authenticating proxy
type bearerTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	return t.base.RoundTrip(req)
}

// New creates a new Ollama client bound to apiKey
func New(ollamaURL, apiKey string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}

	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	httpClient := http.DefaultClient
	if apiKey != "" {
		httpClient = &http.Client{
			Transport: &bearerTransport{apiKey: apiKey, base: http.DefaultTransport},
		}
	}

	return &Client{
		client:  api.NewClient(baseURL, httpClient),
		timeout: DefaultTimeout,
	}, nil
}

// NewFactory returns an llm.Factory producing clients for ollamaURL
func NewFactory(ollamaURL string) llm.Factory {
	return func(apiKey string) (llm.Provider, error) {
		return New(ollamaURL, apiKey)
	}
}

// Complete runs a non-streaming chat request and returns the reply text
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	slog.Debug("ollama: sending chat request", "model", req.Model, "timeout", c.timeout)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]api.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   new(bool), // false
		Options:  map[string]any{"temperature": req.Temperature},
	}
	if req.JSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	var response strings.Builder
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		response.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat failed: %w", err)
	}

	result := strings.TrimSpace(response.String())
	slog.Debug("ollama: response received", "chars", len(result))
	return result, nil
}

// Embed returns the embedding of input
func (c *Client) Embed(ctx context.Context, model, input string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Embed(ctx, &api.EmbedRequest{Model: model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	vec := make([]float64, len(resp.Embeddings[0]))
	for i, v := range resp.Embeddings[0] {
		vec[i] = float64(v)
	}
	return vec, nil
}

// ListModels returns the names of the locally available models
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	if resp.Models == nil {
		return nil, llm.ErrUnrecognizedListing
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
