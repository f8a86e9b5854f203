package scorer

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/aidetector/internal/llm"
	"github.com/zombar/aidetector/internal/models"
)

type stubProvider struct {
	completion  string
	completeErr error
	embedding   []float64
	embedErr    error
	lastReq     llm.CompletionRequest
}

func (s *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	s.lastReq = req
	return s.completion, s.completeErr
}

func (s *stubProvider) Embed(ctx context.Context, model, input string) ([]float64, error) {
	return s.embedding, s.embedErr
}

func (s *stubProvider) ListModels(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestCosineSimilarity(t *testing.T) {
	v := []float64{0.3, -1.2, 4.5, 0.01}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-12)

	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 1}, []float64{-2, -2}), 1e-12)
}

func TestCombine(t *testing.T) {
	s := New(DefaultConfig(), nil)

	completion := models.RemoteScore{
		AIProbability: 80,
		Confidence:    90,
		Factors:       []string{"formulaic transitions"},
		LikelySource:  models.SourceAI,
		Reasoning:     "Polished and generic.",
		Model:         DefaultCompletionModel,
	}
	embedding := models.RemoteScore{
		AIProbability: 40,
		Confidence:    70,
		Factors:       []string{"embedding factor"},
		Model:         DefaultEmbeddingModel,
	}

	combined := s.Combine(completion, embedding)

	assert.Equal(t, 68.0, combined.AIProbability)
	assert.Equal(t, 84.0, combined.Confidence)
	assert.Equal(t, []string{"embedding factor", "formulaic transitions"}, combined.Factors)
	assert.Equal(t, models.SourceAI, combined.LikelySource)
	assert.Equal(t, HybridModel, combined.Model)
	assert.Contains(t, combined.Reasoning, "Polished and generic.")
	assert.Contains(t, combined.Reasoning, "40% AI probability")
}

func TestCombineLikelySourceThreshold(t *testing.T) {
	s := New(DefaultConfig(), nil)

	combined := s.Combine(
		models.RemoteScore{AIProbability: 60, Confidence: 50},
		models.RemoteScore{AIProbability: 60, Confidence: 50},
	)
	assert.Equal(t, 60.0, combined.AIProbability)
	assert.Equal(t, models.SourceHuman, combined.LikelySource)
}

func TestCombineClamps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CompletionWeight = 1
	cfg.EmbeddingWeight = 1
	s := New(cfg, nil)

	combined := s.Combine(
		models.RemoteScore{AIProbability: 90, Confidence: 90},
		models.RemoteScore{AIProbability: 90, Confidence: 90},
	)
	assert.Equal(t, 100.0, combined.AIProbability)
	assert.Equal(t, 100.0, combined.Confidence)
}

func TestScoreCompletion(t *testing.T) {
	p := &stubProvider{
		completion: "```json\n{\"aiProbability\": 72.5, \"confidence\": 140, \"factors\": [\"uniform sentences\"], \"likelySource\": \"AI\", \"reasoning\": \"Very even rhythm.\"}\n```",
	}
	s := New(DefaultConfig(), nil)

	score, err := s.ScoreCompletion(context.Background(), p, "Some text to check.")
	require.NoError(t, err)

	assert.Equal(t, 72.5, score.AIProbability)
	assert.Equal(t, 100.0, score.Confidence, "confidence should be clamped")
	assert.Equal(t, []string{"uniform sentences"}, score.Factors)
	assert.Equal(t, models.SourceAI, score.LikelySource)
	assert.Equal(t, DefaultCompletionModel, score.Model)

	assert.True(t, p.lastReq.JSON)
	assert.Equal(t, systemInstruction, p.lastReq.System)
	assert.Contains(t, p.lastReq.Prompt, "Some text to check.")
	assert.Contains(t, p.lastReq.Prompt, humanExample)
	assert.Contains(t, p.lastReq.Prompt, aiExample)
	assert.Contains(t, p.lastReq.Prompt, "8. Coherence pattern")
}

func TestScoreCompletionMalformed(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantField string
	}{
		{"no json", "I cannot help with that.", ""},
		{"invalid json", `{"aiProbability": 10,`, ""},
		{"missing probability", `{"confidence": 50, "factors": [], "likelySource": "human", "reasoning": "x"}`, "aiProbability"},
		{"string probability", `{"aiProbability": "80", "confidence": 50, "factors": [], "likelySource": "human", "reasoning": "x"}`, "aiProbability"},
		{"null confidence", `{"aiProbability": 80, "confidence": null, "factors": [], "likelySource": "human", "reasoning": "x"}`, "confidence"},
		{"factors not array", `{"aiProbability": 80, "confidence": 50, "factors": "many", "likelySource": "human", "reasoning": "x"}`, "factors"},
		{"factors mixed types", `{"aiProbability": 80, "confidence": 50, "factors": ["a", 2], "likelySource": "human", "reasoning": "x"}`, "factors"},
		{"missing reasoning", `{"aiProbability": 80, "confidence": 50, "factors": [], "likelySource": "human"}`, "reasoning"},
		{"unknown source", `{"aiProbability": 80, "confidence": 50, "factors": [], "likelySource": "robot", "reasoning": "x"}`, "likelySource"},
	}

	s := New(DefaultConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ScoreCompletion(context.Background(), &stubProvider{completion: tt.response}, "text")
			require.Error(t, err)

			var remoteErr *llm.RemoteCallError
			require.True(t, errors.As(err, &remoteErr))
			assert.Equal(t, "completion", remoteErr.Op)

			var malformed *llm.MalformedResponseError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tt.wantField, malformed.Field)
		})
	}
}

func TestScoreCompletionTransportError(t *testing.T) {
	s := New(DefaultConfig(), nil)
	_, err := s.ScoreCompletion(context.Background(), &stubProvider{completeErr: errors.New("connection refused")}, "text")

	var remoteErr *llm.RemoteCallError
	require.True(t, errors.As(err, &remoteErr))

	var malformed *llm.MalformedResponseError
	assert.False(t, errors.As(err, &malformed))
}

func TestScoreEmbedding(t *testing.T) {
	refs := &ReferenceSet{AI: []float64{1, 0}, Human: []float64{0, 1}}
	s := New(DefaultConfig(), refs)

	tests := []struct {
		name      string
		embedding []float64
		want      float64
	}{
		{"closer to AI", []float64{3, 1}, 75},
		{"closer to human", []float64{1, 3}, 25},
		{"equal similarity", []float64{1, 1}, 50},
		{"dimension mismatch", []float64{1, 2, 3}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := s.ScoreEmbedding(context.Background(), &stubProvider{embedding: tt.embedding}, "text")
			require.NoError(t, err)
			assert.Equal(t, tt.want, score.AIProbability)
			assert.Equal(t, 70.0, score.Confidence)
			assert.Equal(t, DefaultEmbeddingModel, score.Model)
			assert.Len(t, score.Factors, 2)
		})
	}
}

func TestScoreEmbeddingZeroSum(t *testing.T) {
	refs := &ReferenceSet{AI: []float64{1, 0}, Human: []float64{-1, 0}}
	s := New(DefaultConfig(), refs)

	score, err := s.ScoreEmbedding(context.Background(), &stubProvider{embedding: []float64{0, 1}}, "text")
	require.NoError(t, err)
	assert.Equal(t, 50.0, score.AIProbability)
}

func TestScoreEmbeddingError(t *testing.T) {
	s := New(DefaultConfig(), nil)
	_, err := s.ScoreEmbedding(context.Background(), &stubProvider{embedErr: errors.New("502 bad gateway")}, "text")

	var remoteErr *llm.RemoteCallError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, "embedding", remoteErr.Op)
}

func TestPlaceholderReferenceSet(t *testing.T) {
	refs := PlaceholderReferenceSet()
	assert.True(t, refs.IsPlaceholder())

	ai, human := refs.Vectors(8)
	assert.Len(t, ai, 8)
	assert.Len(t, human, 8)

	again, _ := refs.Vectors(8)
	assert.Same(t, &ai[0], &again[0], "vectors should be generated once per dimension")

	s := New(DefaultConfig(), refs)
	embedding := make([]float64, 8)
	for i := range embedding {
		embedding[i] = math.Sin(float64(i) + 1)
	}
	score, err := s.ScoreEmbedding(context.Background(), &stubProvider{embedding: embedding}, "text")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score.AIProbability, 0.0)
	assert.LessOrEqual(t, score.AIProbability, 100.0)
}

func TestLoadReferenceSet(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "refs.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{"ai":[0.1,0.2],"human":[0.2,0.1]}`), 0o600))

	refs, err := LoadReferenceSet(valid)
	require.NoError(t, err)
	assert.False(t, refs.IsPlaceholder())
	ai, human := refs.Vectors(2)
	assert.Equal(t, []float64{0.1, 0.2}, ai)
	assert.Equal(t, []float64{0.2, 0.1}, human)

	mismatched := filepath.Join(dir, "mismatch.json")
	require.NoError(t, os.WriteFile(mismatched, []byte(`{"ai":[0.1],"human":[0.2,0.1]}`), 0o600))
	_, err = LoadReferenceSet(mismatched)
	assert.Error(t, err)

	_, err = LoadReferenceSet(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestBuildCompletionPromptQuotesText(t *testing.T) {
	prompt := buildCompletionPrompt("the quick brown fox")
	assert.True(t, strings.HasSuffix(prompt, `"the quick brown fox"`))
}
