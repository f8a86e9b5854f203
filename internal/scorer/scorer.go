package scorer

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zombar/aidetector/internal/llm"
	"github.com/zombar/aidetector/internal/models"
)

const (
	DefaultCompletionModel = "gpt-4o-mini"
	DefaultEmbeddingModel  = "text-embedding-3-small"

	// HybridModel labels results merged from completion and embedding scores
	HybridModel = "hybrid-analysis"

	embeddingConfidence = 70
	aiSourceThreshold   = 60
)

// Config contains model names and merge weights for the scorer
type Config struct {
	CompletionModel  string
	EmbeddingModel   string
	CompletionWeight float64
	EmbeddingWeight  float64
	Temperature      float64
}

// DefaultConfig returns the stock 0.7/0.3 weighting
func DefaultConfig() Config {
	return Config{
		CompletionModel:  DefaultCompletionModel,
		EmbeddingModel:   DefaultEmbeddingModel,
		CompletionWeight: 0.7,
		EmbeddingWeight:  0.3,
		Temperature:      0.1,
	}
}

// Scorer issues remote scoring calls and merges their results
type Scorer struct {
	cfg  Config
	refs *ReferenceSet
}

// New creates a Scorer. A nil refs uses placeholder reference vectors.
func New(cfg Config, refs *ReferenceSet) *Scorer {
	if cfg.CompletionModel == "" {
		cfg.CompletionModel = DefaultCompletionModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if refs == nil {
		refs = PlaceholderReferenceSet()
	}
	return &Scorer{cfg: cfg, refs: refs}
}

// ScoreCompletion asks the completion model for a structured assessment of text
func (s *Scorer) ScoreCompletion(ctx context.Context, p llm.Provider, text string) (models.RemoteScore, error) {
	ctx, span := otel.Tracer("aidetector").Start(ctx, "scorer.completion")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", s.cfg.CompletionModel),
		attribute.Int("text.length", len(text)),
	)

	response, err := p.Complete(ctx, llm.CompletionRequest{
		Model:       s.cfg.CompletionModel,
		System:      systemInstruction,
		Prompt:      buildCompletionPrompt(text),
		JSON:        true,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return models.RemoteScore{}, &llm.RemoteCallError{Op: "completion", Err: err}
	}

	score, err := parseCompletion(response, s.cfg.CompletionModel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed completion")
		return models.RemoteScore{}, &llm.RemoteCallError{Op: "completion", Err: err}
	}

	span.SetAttributes(attribute.Float64("score.ai_probability", score.AIProbability))
	return score, nil
}

// ScoreEmbedding compares the embedding of text against the reference vectors
func (s *Scorer) ScoreEmbedding(ctx context.Context, p llm.Provider, text string) (models.RemoteScore, error) {
	ctx, span := otel.Tracer("aidetector").Start(ctx, "scorer.embedding")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", s.cfg.EmbeddingModel),
		attribute.Bool("reference.placeholder", s.refs.IsPlaceholder()),
	)

	embedding, err := p.Embed(ctx, s.cfg.EmbeddingModel, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return models.RemoteScore{}, &llm.RemoteCallError{Op: "embedding", Err: err}
	}

	aiRef, humanRef := s.refs.Vectors(len(embedding))
	simAI := CosineSimilarity(embedding, aiRef)
	simHuman := CosineSimilarity(embedding, humanRef)

	aiProbability := 50.0
	if sum := simAI + simHuman; sum != 0 {
		aiProbability = clamp(math.Round(100 * simAI / sum))
	}

	span.SetAttributes(
		attribute.Float64("similarity.ai", simAI),
		attribute.Float64("similarity.human", simHuman),
	)

	return models.RemoteScore{
		AIProbability: aiProbability,
		Confidence:    embeddingConfidence,
		Factors: []string{
			fmt.Sprintf("Embedding similarity to AI pattern: %.3f", simAI),
			fmt.Sprintf("Embedding similarity to human pattern: %.3f", simHuman),
		},
		LikelySource: likelySource(aiProbability),
		Reasoning:    fmt.Sprintf("Embedding comparison suggests %.0f%% AI probability.", aiProbability),
		Model:        s.cfg.EmbeddingModel,
	}, nil
}

// Combine merges a completion score and an embedding score with the configured weights
func (s *Scorer) Combine(completion, embedding models.RemoteScore) models.RemoteScore {
	aiProbability := clamp(math.Round(s.cfg.EmbeddingWeight*embedding.AIProbability + s.cfg.CompletionWeight*completion.AIProbability))
	confidence := clamp(math.Round(s.cfg.EmbeddingWeight*embedding.Confidence + s.cfg.CompletionWeight*completion.Confidence))

	factors := make([]string, 0, len(embedding.Factors)+len(completion.Factors))
	factors = append(factors, embedding.Factors...)
	factors = append(factors, completion.Factors...)

	return models.RemoteScore{
		AIProbability: aiProbability,
		Confidence:    confidence,
		Factors:       factors,
		LikelySource:  likelySource(aiProbability),
		Reasoning: fmt.Sprintf("Hybrid analysis: %s Embedding analysis indicates %.0f%% AI probability.",
			completion.Reasoning, embedding.AIProbability),
		Model: HybridModel,
	}
}

func likelySource(aiProbability float64) string {
	if aiProbability > aiSourceThreshold {
		return models.SourceAI
	}
	return models.SourceHuman
}

// clamp bounds a score to [0,100]
func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
