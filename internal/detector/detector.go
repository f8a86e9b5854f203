package detector

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zombar/aidetector/internal/analyzer"
	"github.com/zombar/aidetector/internal/llm"
	"github.com/zombar/aidetector/internal/models"
	"github.com/zombar/aidetector/internal/scorer"
	"github.com/zombar/aidetector/pkg/metrics"
	"github.com/zombar/aidetector/pkg/tracing"
)

// Detector runs the analysis pipeline against providers built per credential
type Detector struct {
	factory llm.Factory
	scorer  *scorer.Scorer
	cfg     Config
	metrics *metrics.BusinessMetrics
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Detector
type Option func(*Detector)

// WithMetrics records analysis, remote call and batch metrics on m
func WithMetrics(m *metrics.BusinessMetrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// New creates a Detector. factory builds one provider per credential.
func New(factory llm.Factory, sc *scorer.Scorer, cfg Config, opts ...Option) (*Detector, error) {
	if factory == nil {
		return nil, errors.New("provider factory is required")
	}
	if sc == nil {
		return nil, errors.New("scorer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}

	d := &Detector{
		factory: factory,
		scorer:  sc,
		cfg:     cfg,
		logger:  slog.Default(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// Analyze scores a single text. Input problems are reported as *ValidationError
// before any remote call; a failed remote call fails the whole analysis.
func (d *Detector) Analyze(ctx context.Context, input models.AnalysisInput) (*models.AnalysisResult, error) {
	ctx, span := otel.Tracer("aidetector").Start(ctx, "detector.analyze")
	defer span.End()

	if strings.TrimSpace(input.Text) == "" {
		return nil, &ValidationError{Field: "text", Message: "is required"}
	}
	if err := d.checkCredential(input.APIKey); err != nil {
		return nil, err
	}
	mode, err := ParseMode(input.Mode)
	if err != nil {
		return nil, err
	}

	p, err := d.factory(input.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	result, err := d.run(ctx, p, input.Text, mode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		return nil, err
	}

	return result, nil
}

// run executes preprocessing, statistics and remote scoring for one text.
// Statistics are computed while the completion call is in flight.
func (d *Detector) run(ctx context.Context, p llm.Provider, text string, mode models.Mode) (*models.AnalysisResult, error) {
	start := time.Now()

	cleaned := analyzer.Preprocess(text)
	if cleaned == "" {
		return nil, &ValidationError{Field: "text", Message: "contains no analyzable content"}
	}

	var (
		wg                      sync.WaitGroup
		completion, embedding   models.RemoteScore
		completionErr, embedErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		completion, completionErr = d.scorer.ScoreCompletion(ctx, p, cleaned)
		d.metrics.RecordRemoteCall("completion", completionErr)
	}()

	stats := analyzer.Calculate(cleaned)

	hybrid := mode == models.ModeEnhanced && stats.Words >= d.cfg.HybridMinWords
	if hybrid {
		wg.Add(1)
		go func() {
			defer wg.Done()
			embedding, embedErr = d.scorer.ScoreEmbedding(ctx, p, cleaned)
			d.metrics.RecordRemoteCall("embedding", embedErr)
		}()
	}

	wg.Wait()

	tracing.SetSpanAttributes(ctx,
		attribute.String("analysis.mode", string(mode)),
		attribute.Int("text.words", stats.Words),
		attribute.Bool("analysis.hybrid", hybrid),
	)

	if err := cmp.Or(completionErr, embedErr); err != nil {
		d.metrics.RecordAnalysis(ctx, string(mode), metrics.StatusError, time.Since(start))
		d.logger.Warn("analysis failed", "mode", mode, "hybrid", hybrid, "error", err)
		return nil, err
	}

	combined := completion
	if hybrid {
		combined = d.scorer.Combine(completion, embedding)
	}

	validation := ValidationScore(combined.Confidence, stats)
	result := &models.AnalysisResult{
		ID:             uuid.NewString(),
		AIProbability:  combined.AIProbability,
		Confidence:     combined.Confidence,
		TextStats:      stats,
		Interpretation: Interpret(combined.AIProbability, stats),
		APIDetails: models.APIDetails{
			Model:             combined.Model,
			ConfidenceFactors: combined.Factors,
			Reasoning:         combined.Reasoning,
		},
		SourceModel:     sourceModel(mode),
		ValidationScore: &validation,
		AnalyzedAt:      time.Now().UTC(),
	}

	duration := time.Since(start)
	d.metrics.RecordAnalysis(ctx, string(mode), metrics.StatusSuccess, duration)
	d.logger.Info("analysis completed",
		"analysis_id", result.ID,
		"mode", mode,
		"hybrid", hybrid,
		"words", stats.Words,
		"ai_probability", result.AIProbability,
		"confidence", result.Confidence,
		"duration_ms", duration.Milliseconds(),
	)

	return result, nil
}

func (d *Detector) checkCredential(apiKey string) error {
	if apiKey == "" {
		return &ValidationError{Field: "api_key", Message: "is required"}
	}
	if !strings.HasPrefix(apiKey, d.cfg.CredentialPrefix) {
		return &ValidationError{Field: "api_key", Message: fmt.Sprintf("must start with %q", d.cfg.CredentialPrefix)}
	}
	return nil
}

// ParseMode maps an empty mode to standard and rejects unknown modes
func ParseMode(mode models.Mode) (models.Mode, error) {
	switch mode {
	case "", models.ModeStandard:
		return models.ModeStandard, nil
	case models.ModeEnhanced:
		return models.ModeEnhanced, nil
	default:
		return "", &ValidationError{Field: "mode", Message: fmt.Sprintf("must be %q or %q", models.ModeStandard, models.ModeEnhanced)}
	}
}

func sourceModel(mode models.Mode) models.SourceModel {
	if mode == models.ModeEnhanced {
		return models.SourceEnhanced
	}
	return models.SourceStandard
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
