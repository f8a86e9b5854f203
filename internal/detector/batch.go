package detector

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/aidetector/internal/models"
)

// Sentinel values reported for a batch item whose analysis failed
const (
	FailedAIProbability  = 50
	FailedConfidence     = 10
	FailedInterpretation = "Analysis failed"
)

// AnalyzeBatch analyzes lines in groups of GroupSize. Members of a group run
// concurrently; the next group starts GroupDelay after the previous one has
// fully finished. A failed item becomes a sentinel entry and never aborts its
// siblings. Items are returned in input order.
func (d *Detector) AnalyzeBatch(ctx context.Context, lines []string, apiKey string, mode models.Mode) (*models.BatchResult, error) {
	ctx, span := otel.Tracer("aidetector").Start(ctx, "detector.batch")
	defer span.End()

	texts := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			texts = append(texts, line)
		}
	}
	if len(texts) == 0 {
		return nil, &ValidationError{Field: "text", Message: "no non-blank lines to analyze"}
	}
	if err := d.checkCredential(apiKey); err != nil {
		return nil, err
	}
	mode, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	p, err := d.factory(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	groups := (len(texts) + d.cfg.GroupSize - 1) / d.cfg.GroupSize
	span.SetAttributes(
		attribute.Int("batch.size", len(texts)),
		attribute.Int("batch.group_size", d.cfg.GroupSize),
		attribute.Int("batch.groups", groups),
		attribute.String("analysis.mode", string(mode)),
	)

	d.logger.Info("batch started", "items", len(texts), "groups", groups, "mode", mode)

	items := make([]models.BatchItem, len(texts))
	for start, group := 0, 1; start < len(texts); start, group = start+d.cfg.GroupSize, group+1 {
		end := min(start+d.cfg.GroupSize, len(texts))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result, err := d.run(ctx, p, texts[i], mode)
				if err != nil {
					items[i] = failedItem(texts[i], err)
					return
				}
				items[i] = succeededItem(texts[i], result)
			}(i)
		}
		wg.Wait()

		d.logger.Debug("batch group finished", "group", group, "items", end-start)

		if end == len(texts) {
			break
		}
		if err := d.sleep(ctx, d.cfg.GroupDelay); err != nil {
			// Cancelled between groups: the remaining items were never started
			for i := end; i < len(texts); i++ {
				items[i] = failedItem(texts[i], err)
			}
			span.AddEvent("batch_cancelled", trace.WithAttributes(attribute.Int("batch.remaining", len(texts)-end)))
			break
		}
	}

	result := &models.BatchResult{Items: items}
	for _, item := range items {
		if item.Failed() {
			result.Failed++
		} else {
			result.Succeeded++
		}
		d.metrics.RecordBatchItem(item.Failed())
	}

	span.SetAttributes(
		attribute.Int("batch.succeeded", result.Succeeded),
		attribute.Int("batch.failed", result.Failed),
	)
	d.logger.Info("batch completed", "items", len(items), "succeeded", result.Succeeded, "failed", result.Failed)

	return result, nil
}

func succeededItem(text string, result *models.AnalysisResult) models.BatchItem {
	return models.BatchItem{
		Text:           text,
		Result:         result,
		AIProbability:  result.AIProbability,
		Confidence:     result.Confidence,
		Interpretation: result.Interpretation,
	}
}

func failedItem(text string, err error) models.BatchItem {
	return models.BatchItem{
		Text:           text,
		Error:          err.Error(),
		AIProbability:  FailedAIProbability,
		Confidence:     FailedConfidence,
		Interpretation: FailedInterpretation,
	}
}
