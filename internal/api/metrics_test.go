package api

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"

	"github.com/zombar/aidetector/pkg/metrics"
)

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBusinessMetrics("aidetector", reg)
	m.RecordRemoteCall("completion", nil)

	h := NewHandler(&stubDetector{}, Config{
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	w := doRequest(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), `aidetector_remote_calls_total{op="completion",status="success"} 1`)
}
