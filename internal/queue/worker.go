package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zombar/aidetector/internal/models"
)

// BatchAnalyzer runs a batch of texts with one credential
type BatchAnalyzer interface {
	AnalyzeBatch(ctx context.Context, lines []string, apiKey string, mode models.Mode) (*models.BatchResult, error)
}

// Worker wraps the Asynq server for processing batch jobs
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	analyzer    BatchAnalyzer
	apiKey      string
	concurrency int
	logger      *slog.Logger
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
	// APIKey is the server-side credential used for every queued batch
	APIKey string
}

// NewWorker creates a new queue worker
func NewWorker(cfg WorkerConfig, analyzer BatchAnalyzer) *Worker {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	serverCfg := asynq.Config{
		// Each job already fans out per group; keep job-level parallelism small
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueBatch: 1,
		},

		ShutdownTimeout: 30 * time.Second,

		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			taskID, _ := asynq.GetTaskID(ctx)
			slog.Error("task processing error",
				"task_type", task.Type(),
				"job_id", taskID,
				"error", err,
			)
		}),
	}

	w := &Worker{
		server:      asynq.NewServer(redisOpt, serverCfg),
		mux:         asynq.NewServeMux(),
		analyzer:    analyzer,
		apiKey:      cfg.APIKey,
		concurrency: concurrency,
		logger:      slog.Default(),
	}

	w.registerHandlers()

	return w
}

// registerHandlers registers all task handlers with the worker
func (w *Worker) registerHandlers() {
	w.mux.HandleFunc(TypeAnalyzeBatch, w.handleAnalyzeBatch)
}

// Start starts the worker in the background
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queue", QueueBatch,
	)

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}
