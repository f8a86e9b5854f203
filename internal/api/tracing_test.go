package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zombar/aidetector/pkg/tracing"
)

// TestAnalyzeTracing tests that the analyze handler annotates the server span
func TestAnalyzeTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)))
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	h := tracing.HTTPMiddleware("aidetector")(setupTestHandler(t, &stubDetector{}, nil))

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"text": "Tracing test text.", "mode": "standard"}`))
	req.Header.Set("Authorization", "Bearer sk-trace")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spans[0].Attributes
	assert.Contains(t, attrs, attribute.Int("text.length", len("Tracing test text.")))
	assert.Contains(t, attrs, attribute.String("analysis.mode", "standard"))
}
