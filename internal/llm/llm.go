package llm

import (
	"context"
	"errors"
)

// ErrUnrecognizedListing is returned when a model listing is not array-shaped
var ErrUnrecognizedListing = errors.New("model listing is not an array")

// CompletionRequest describes a single structured completion call
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	JSON        bool // request a JSON object response
	Temperature float64
}

// Provider is a language-model backend. Implementations are bound to one credential.
type Provider interface {
	// Complete returns the raw text of the model's reply
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Embed returns a single embedding vector for input
	Embed(ctx context.Context, model, input string) ([]float64, error)
	// ListModels returns the identifiers of the available models
	ListModels(ctx context.Context) ([]string, error)
}

// Factory builds a Provider for the given credential
type Factory func(apiKey string) (Provider, error)
