package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/aidetector/internal/detector"
	"github.com/zombar/aidetector/internal/llm"
	"github.com/zombar/aidetector/internal/models"
	"github.com/zombar/aidetector/internal/queue"
)

type stubDetector struct {
	analyzeInput models.AnalysisInput
	analyzeErr   error

	batchLines []string
	batchKey   string
	batchMode  models.Mode
	batchErr   error

	validatedKey string
	valid        bool
}

func (s *stubDetector) Analyze(ctx context.Context, input models.AnalysisInput) (*models.AnalysisResult, error) {
	s.analyzeInput = input
	if s.analyzeErr != nil {
		return nil, s.analyzeErr
	}
	return &models.AnalysisResult{ID: "result-1", AIProbability: 72, Confidence: 81, SourceModel: models.SourceStandard}, nil
}

func (s *stubDetector) AnalyzeBatch(ctx context.Context, lines []string, apiKey string, mode models.Mode) (*models.BatchResult, error) {
	s.batchLines = lines
	s.batchKey = apiKey
	s.batchMode = mode
	if s.batchErr != nil {
		return nil, s.batchErr
	}
	result := &models.BatchResult{}
	for _, line := range lines {
		result.Items = append(result.Items, models.BatchItem{Text: line, AIProbability: 30, Confidence: 60})
		result.Succeeded++
	}
	return result, nil
}

func (s *stubDetector) ValidateCredential(ctx context.Context, apiKey string) bool {
	s.validatedKey = apiKey
	return s.valid
}

type stubJobs struct {
	enqueuedLines []string
	enqueuedMode  models.Mode
	enqueueErr    error
	status        *queue.JobStatus
	statusErr     error
}

func (s *stubJobs) EnqueueBatch(ctx context.Context, lines []string, mode models.Mode) (string, error) {
	s.enqueuedLines = lines
	s.enqueuedMode = mode
	return "job-42", s.enqueueErr
}

func (s *stubJobs) JobStatus(ctx context.Context, jobID string) (*queue.JobStatus, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.status, nil
}

func setupTestHandler(t *testing.T, d Detector, jobs JobQueue) http.Handler {
	t.Helper()
	cfg := Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if jobs != nil {
		cfg.Jobs = jobs
	}
	return NewHandler(d, cfg)
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealthEndpoint(t *testing.T) {
	h := setupTestHandler(t, &stubDetector{}, nil)

	w := doRequest(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decodeBody(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["async_batch"])
}

func TestAnalyzeEndpoint(t *testing.T) {
	d := &stubDetector{}
	h := setupTestHandler(t, d, nil)

	w := doRequest(t, h, http.MethodPost, "/api/analyze",
		`{"text": "Some text to analyze.", "mode": "enhanced"}`,
		map[string]string{"Authorization": "Bearer sk-header"})
	require.Equal(t, http.StatusOK, w.Code)

	var result models.AnalysisResult
	decodeBody(t, w, &result)
	assert.Equal(t, "result-1", result.ID)
	assert.Equal(t, 72.0, result.AIProbability)

	assert.Equal(t, "Some text to analyze.", d.analyzeInput.Text)
	assert.Equal(t, models.ModeEnhanced, d.analyzeInput.Mode)
	assert.Equal(t, "sk-header", d.analyzeInput.APIKey)
}

func TestAnalyzeEndpointBodyKey(t *testing.T) {
	d := &stubDetector{}
	h := setupTestHandler(t, d, nil)

	w := doRequest(t, h, http.MethodPost, "/api/analyze", `{"text": "Hi.", "api_key": "sk-body"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sk-body", d.analyzeInput.APIKey)
}

func TestAnalyzeEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "validation error",
			err:        &detector.ValidationError{Field: "api_key", Message: `must start with "sk-"`},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid api_key",
		},
		{
			name:       "remote call error",
			err:        &llm.RemoteCallError{Op: "completion", Err: &llm.StatusError{StatusCode: 429, Body: "rate limited"}},
			wantStatus: http.StatusBadGateway,
			wantError:  "remote completion call failed",
		},
		{
			name:       "wrapped remote call error",
			err:        errors.Join(errors.New("context"), &llm.RemoteCallError{Op: "embedding", Err: errors.New("timeout")}),
			wantStatus: http.StatusBadGateway,
			wantError:  "remote embedding call failed",
		},
		{
			name:       "unexpected error",
			err:        errors.New("failed to create provider: bad url"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestHandler(t, &stubDetector{analyzeErr: tt.err}, nil)

			w := doRequest(t, h, http.MethodPost, "/api/analyze", `{"text": "Hello."}`, nil)
			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]string
			decodeBody(t, w, &body)
			assert.Contains(t, body["error"], tt.wantError)
		})
	}
}

func TestAnalyzeEndpointInvalidBody(t *testing.T) {
	h := setupTestHandler(t, &stubDetector{}, nil)

	w := doRequest(t, h, http.MethodPost, "/api/analyze", `{"text":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, http.MethodGet, "/api/analyze", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAnalyzeEndpointBodyTooLarge(t *testing.T) {
	d := &stubDetector{}
	h := setupTestHandler(t, d, nil)

	body := `{"text":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	w := doRequest(t, h, http.MethodPost, "/api/analyze", body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var resp map[string]string
	decodeBody(t, w, &resp)
	assert.Contains(t, resp["error"], "exceeds")

	w = doRequest(t, h, http.MethodPost, "/api/batch", body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestBatchEndpoint(t *testing.T) {
	t.Run("newline separated text", func(t *testing.T) {
		d := &stubDetector{}
		h := setupTestHandler(t, d, nil)

		w := doRequest(t, h, http.MethodPost, "/api/batch",
			`{"text": "First line.\n\n  \nSecond line.\r\nThird line.", "mode": "standard"}`,
			map[string]string{"Authorization": "Bearer sk-batch"})
		require.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, []string{"First line.", "Second line.", "Third line."}, d.batchLines)
		assert.Equal(t, "sk-batch", d.batchKey)
		assert.Equal(t, models.ModeStandard, d.batchMode)

		var result models.BatchResult
		decodeBody(t, w, &result)
		assert.Len(t, result.Items, 3)
		assert.Equal(t, 3, result.Succeeded)
	})

	t.Run("explicit texts", func(t *testing.T) {
		d := &stubDetector{}
		h := setupTestHandler(t, d, nil)

		w := doRequest(t, h, http.MethodPost, "/api/batch", `{"texts": ["A.", "B."], "api_key": "sk-x"}`, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"A.", "B."}, d.batchLines)
	})

	t.Run("validation error", func(t *testing.T) {
		d := &stubDetector{batchErr: &detector.ValidationError{Field: "text", Message: "no non-blank lines to analyze"}}
		h := setupTestHandler(t, d, nil)

		w := doRequest(t, h, http.MethodPost, "/api/batch", `{"text": ""}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEnqueueBatchEndpoint(t *testing.T) {
	t.Run("disabled without a queue", func(t *testing.T) {
		h := setupTestHandler(t, &stubDetector{}, nil)

		w := doRequest(t, h, http.MethodPost, "/api/batch/jobs", `{"text": "A."}`, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		w = doRequest(t, h, http.MethodGet, "/api/batch/jobs/job-1", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("queued", func(t *testing.T) {
		jobs := &stubJobs{}
		h := setupTestHandler(t, &stubDetector{}, jobs)

		w := doRequest(t, h, http.MethodPost, "/api/batch/jobs", `{"texts": ["A.", " ", "B."], "mode": "enhanced"}`, nil)
		require.Equal(t, http.StatusAccepted, w.Code)

		var body map[string]any
		decodeBody(t, w, &body)
		assert.Equal(t, "job-42", body["job_id"])
		assert.Equal(t, float64(2), body["lines"])

		assert.Equal(t, []string{"A.", "B."}, jobs.enqueuedLines)
		assert.Equal(t, models.ModeEnhanced, jobs.enqueuedMode)
	})

	t.Run("rejects empty batch and bad mode", func(t *testing.T) {
		jobs := &stubJobs{}
		h := setupTestHandler(t, &stubDetector{}, jobs)

		w := doRequest(t, h, http.MethodPost, "/api/batch/jobs", `{"text": "\n \n"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doRequest(t, h, http.MethodPost, "/api/batch/jobs", `{"text": "A.", "mode": "turbo"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		assert.Nil(t, jobs.enqueuedLines)
	})

	t.Run("enqueue failure", func(t *testing.T) {
		h := setupTestHandler(t, &stubDetector{}, &stubJobs{enqueueErr: errors.New("redis unavailable")})

		w := doRequest(t, h, http.MethodPost, "/api/batch/jobs", `{"text": "A."}`, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestJobStatusEndpoint(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		jobs := &stubJobs{status: &queue.JobStatus{
			JobID:  "job-42",
			State:  "completed",
			Result: &models.BatchResult{Items: []models.BatchItem{{Text: "A."}}, Succeeded: 1},
		}}
		h := setupTestHandler(t, &stubDetector{}, jobs)

		w := doRequest(t, h, http.MethodGet, "/api/batch/jobs/job-42", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var status queue.JobStatus
		decodeBody(t, w, &status)
		assert.Equal(t, "completed", status.State)
		require.NotNil(t, status.Result)
		assert.Equal(t, 1, status.Result.Succeeded)
	})

	t.Run("not found", func(t *testing.T) {
		h := setupTestHandler(t, &stubDetector{}, &stubJobs{statusErr: queue.ErrJobNotFound})

		w := doRequest(t, h, http.MethodGet, "/api/batch/jobs/missing", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestValidateCredentialEndpoint(t *testing.T) {
	t.Run("header credential", func(t *testing.T) {
		d := &stubDetector{valid: true}
		h := setupTestHandler(t, d, nil)

		w := doRequest(t, h, http.MethodPost, "/api/credentials/validate", "", map[string]string{"Authorization": "Bearer sk-good"})
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]bool
		decodeBody(t, w, &body)
		assert.True(t, body["valid"])
		assert.Equal(t, "sk-good", d.validatedKey)
	})

	t.Run("body credential rejected", func(t *testing.T) {
		d := &stubDetector{valid: false}
		h := setupTestHandler(t, d, nil)

		w := doRequest(t, h, http.MethodPost, "/api/credentials/validate", `{"api_key": "abc123"}`, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]bool
		decodeBody(t, w, &body)
		assert.False(t, body["valid"])
		assert.Equal(t, "abc123", d.validatedKey)
	})
}

func TestCORSPreflight(t *testing.T) {
	h := setupTestHandler(t, &stubDetector{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCredentialExtraction(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Equal(t, "sk-body", credential(req, "sk-body"))

	req.Header.Set("Authorization", "Bearer  sk-header ")
	assert.Equal(t, "sk-header", credential(req, "sk-body"))

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Equal(t, "sk-body", credential(req, "sk-body"))
}
