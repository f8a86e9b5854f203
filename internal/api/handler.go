package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/aidetector/internal/analyzer"
	"github.com/zombar/aidetector/internal/detector"
	"github.com/zombar/aidetector/internal/llm"
	"github.com/zombar/aidetector/internal/models"
	"github.com/zombar/aidetector/internal/queue"
	"github.com/zombar/aidetector/pkg/logging"
	"github.com/zombar/aidetector/pkg/tracing"
)

// maxBodyBytes bounds request bodies, including large batches
const maxBodyBytes = 4 << 20

// Detector is the analysis surface the API exposes
type Detector interface {
	Analyze(ctx context.Context, input models.AnalysisInput) (*models.AnalysisResult, error)
	AnalyzeBatch(ctx context.Context, lines []string, apiKey string, mode models.Mode) (*models.BatchResult, error)
	ValidateCredential(ctx context.Context, apiKey string) bool
}

// JobQueue accepts batches for asynchronous processing
type JobQueue interface {
	EnqueueBatch(ctx context.Context, lines []string, mode models.Mode) (string, error)
	JobStatus(ctx context.Context, jobID string) (*queue.JobStatus, error)
}

// Handler handles HTTP requests
type Handler struct {
	detector Detector
	jobs     JobQueue
	metrics  http.Handler
	logger   *slog.Logger
	router   chi.Router
}

// Config holds the optional collaborators of the API
type Config struct {
	// Jobs enables the asynchronous batch endpoints when non-nil
	Jobs JobQueue
	// Metrics serves /metrics, promhttp.Handler() when nil
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewHandler creates the API router with CORS support and metrics
func NewHandler(d Detector, cfg Config) http.Handler {
	h := newHandler(d, cfg)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	return c.Handler(h.router)
}

func newHandler(d Detector, cfg Config) *Handler {
	h := &Handler{
		detector: d,
		jobs:     cfg.Jobs,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		router:   chi.NewRouter(),
	}
	if h.metrics == nil {
		h.metrics = promhttp.Handler()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	h.setupRoutes()
	return h
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	h.router.Use(middleware.RequestID)
	h.router.Use(middleware.Recoverer)

	h.router.Get("/health", h.handleHealth)
	h.router.Handle("/metrics", h.metrics)

	h.router.Route("/api", func(r chi.Router) {
		r.Post("/analyze", h.handleAnalyze)
		r.Post("/batch", h.handleBatch)
		r.Post("/batch/jobs", h.handleEnqueueBatch)
		r.Get("/batch/jobs/{id}", h.handleJobStatus)
		r.Post("/credentials/validate", h.handleValidateCredential)
	})
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"status":      "ok",
		"time":        time.Now().Format(time.RFC3339),
		"async_batch": h.jobs != nil,
	}, http.StatusOK)
}

type analyzeRequest struct {
	Text   string      `json:"text"`
	Mode   models.Mode `json:"mode"`
	APIKey string      `json:"api_key,omitempty"`
}

// handleAnalyze scores a single text synchronously
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !h.decode(w, r, &req) {
		return
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.Int("text.length", len(req.Text)),
		attribute.String("analysis.mode", string(req.Mode)),
	)

	result, err := h.detector.Analyze(r.Context(), models.AnalysisInput{
		Text:   req.Text,
		APIKey: credential(r, req.APIKey),
		Mode:   req.Mode,
	})
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	respondJSON(w, result, http.StatusOK)
}

type batchRequest struct {
	// Text holds one item per line; Texts takes precedence when set
	Text   string      `json:"text"`
	Texts  []string    `json:"texts"`
	Mode   models.Mode `json:"mode"`
	APIKey string      `json:"api_key,omitempty"`
}

func (req batchRequest) lines() []string {
	if len(req.Texts) > 0 {
		return req.Texts
	}
	return analyzer.SplitLines(req.Text)
}

// handleBatch runs a batch synchronously and returns every item in input order
func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !h.decode(w, r, &req) {
		return
	}

	lines := req.lines()
	tracing.SetSpanAttributes(r.Context(), attribute.Int("batch.lines", len(lines)))

	result, err := h.detector.AnalyzeBatch(r.Context(), lines, credential(r, req.APIKey), req.Mode)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	respondJSON(w, result, http.StatusOK)
}

// handleEnqueueBatch queues a batch for the worker, which analyzes it with the server credential
func (h *Handler) handleEnqueueBatch(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondError(w, "asynchronous batch jobs are not enabled", http.StatusServiceUnavailable)
		return
	}

	var req batchRequest
	if !h.decode(w, r, &req) {
		return
	}

	lines := analyzer.SplitLines(strings.Join(req.lines(), "\n"))
	if len(lines) == 0 {
		h.respondFailure(w, r, &detector.ValidationError{Field: "text", Message: "no non-blank lines to analyze"})
		return
	}
	mode, err := detector.ParseMode(req.Mode)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	jobID, err := h.jobs.EnqueueBatch(r.Context(), lines, mode)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	respondJSON(w, map[string]any{
		"job_id": jobID,
		"status": "queued",
		"lines":  len(lines),
	}, http.StatusAccepted)
}

// handleJobStatus reports the state of a queued batch and its result once complete
func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondError(w, "asynchronous batch jobs are not enabled", http.StatusServiceUnavailable)
		return
	}

	status, err := h.jobs.JobStatus(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, queue.ErrJobNotFound) {
		respondError(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	respondJSON(w, status, http.StatusOK)
}

// handleValidateCredential checks a credential against the backend
func (h *Handler) handleValidateCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	valid := h.detector.ValidateCredential(r.Context(), credential(r, req.APIKey))
	respondJSON(w, map[string]bool{"valid": valid}, http.StatusOK)
}

// decode reads a JSON body into v, responding 400 on failure
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return false
		}
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// respondFailure maps pipeline errors to status codes
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *detector.ValidationError
		remoteErr     *llm.RemoteCallError
	)

	switch {
	case errors.As(err, &validationErr):
		respondError(w, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &remoteErr):
		logging.HTTPErrorLogger(h.logger, http.StatusBadGateway, err, r)
		respondError(w, remoteErr.Error(), http.StatusBadGateway)
	default:
		logging.HTTPErrorLogger(h.logger, http.StatusInternalServerError, err, r)
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}

// credential prefers the bearer token over a key in the body
func credential(r *http.Request, bodyKey string) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return bodyKey
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, map[string]string{"error": message}, statusCode)
}
