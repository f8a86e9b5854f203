package queue

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/aidetector/internal/analyzer"
)

// handleAnalyzeBatch runs a queued batch and stores the BatchResult as the task result
func (w *Worker) handleAnalyzeBatch(ctx context.Context, t *asynq.Task) error {
	var payload AnalyzeBatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}

	var queueWaitTime time.Duration
	if payload.EnqueuedAt > 0 {
		queueWaitTime = time.Since(time.Unix(0, payload.EnqueuedAt))
	}

	ctx, span := startConsumerSpan(ctx, payload,
		attribute.String("task.type", TypeAnalyzeBatch),
		attribute.String("job.id", payload.JobID),
		attribute.Int("batch.lines", payload.Lines),
		attribute.String("analysis.mode", string(payload.Mode)),
		attribute.Float64("queue.wait_time_seconds", queueWaitTime.Seconds()),
	)
	defer span.End()

	w.logger.Info("processing batch job",
		"job_id", payload.JobID,
		"lines", payload.Lines,
		"mode", payload.Mode,
		"queue_wait_seconds", queueWaitTime.Seconds(),
	)

	text, err := decompressText(payload.Text)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("invalid batch text: %v: %w", err, asynq.SkipRetry)
	}

	result, err := w.analyzer.AnalyzeBatch(ctx, analyzer.SplitLines(text), w.apiKey, payload.Mode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch failed")
		return fmt.Errorf("batch analysis failed: %v: %w", err, asynq.SkipRetry)
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal batch result: %w", err)
	}

	// Tasks built outside a server (tests) have no result writer
	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write(resultBytes); err != nil {
			return fmt.Errorf("failed to write batch result: %w", err)
		}
	}

	span.SetAttributes(
		attribute.Int("batch.succeeded", result.Succeeded),
		attribute.Int("batch.failed", result.Failed),
	)
	w.logger.Info("batch job completed",
		"job_id", payload.JobID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)

	return nil
}

// startConsumerSpan continues the enqueuing request's trace when the payload carries one
func startConsumerSpan(ctx context.Context, payload AnalyzeBatchPayload, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if payload.TraceID != "" && payload.SpanID != "" {
		traceID, traceErr := trace.TraceIDFromHex(payload.TraceID)
		spanID, spanErr := trace.SpanIDFromHex(payload.SpanID)
		if traceErr == nil && spanErr == nil {
			remoteSpanCtx := trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    traceID,
				SpanID:     spanID,
				TraceFlags: trace.FlagsSampled,
				Remote:     true,
			})
			ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)
		}
	}

	ctx, span := otel.Tracer("aidetector").Start(ctx, "asynq.task.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
	)
	span.AddEvent("task_processing_started")

	return ctx, span
}

// compressText gzips and base64 encodes text
func compressText(text string) (string, error) {
	if text == "" {
		return "", nil
	}

	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)

	if _, err := gzWriter.Write([]byte(text)); err != nil {
		return "", fmt.Errorf("failed to write to gzip: %w", err)
	}

	if err := gzWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decompressText reverses compressText
func decompressText(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	gzReader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	decompressed, err := io.ReadAll(gzReader)
	if err != nil {
		return "", fmt.Errorf("failed to read decompressed data: %w", err)
	}

	return string(decompressed), nil
}
