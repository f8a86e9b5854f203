package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombar/aidetector/internal/api"
	"github.com/zombar/aidetector/internal/database"
	"github.com/zombar/aidetector/internal/detector"
	"github.com/zombar/aidetector/internal/llm"
	"github.com/zombar/aidetector/internal/ollama"
	"github.com/zombar/aidetector/internal/openai"
	"github.com/zombar/aidetector/internal/queue"
	"github.com/zombar/aidetector/internal/scorer"
	"github.com/zombar/aidetector/pkg/logging"
	"github.com/zombar/aidetector/pkg/metrics"
	"github.com/zombar/aidetector/pkg/tracing"
)

const serviceName = "aidetector"

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}

	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("aidetector service initializing", "version", "1.0.0")

	// Initialize tracing
	tp, err := tracing.InitTracer(serviceName)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	businessMetrics := metrics.NewBusinessMetrics(serviceName, reg)

	refs := scorer.PlaceholderReferenceSet()
	if cfg.ReferenceVectorsPath != "" {
		refs, err = scorer.LoadReferenceSet(cfg.ReferenceVectorsPath)
		if err != nil {
			logger.Error("failed to load reference vectors", "error", err, "path", cfg.ReferenceVectorsPath)
			os.Exit(1)
		}
	}

	// Remote calls are rate limited below the cache so cache hits stay free
	factory := llm.LimitFactory(buildFactory(cfg), llm.NewLimiter(cfg.RemoteRateLimit, cfg.RemoteRateBurst))

	// Optional embedding cache
	if cfg.EmbedCache {
		db, err := database.New(cfg.EmbedCacheDSN)
		if err != nil {
			logger.Error("failed to initialize embedding cache", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		if err := metrics.RegisterDBStats(reg, db.Conn(), "embedding_cache"); err != nil {
			logger.Warn("failed to register database metrics", "error", err)
		}

		factory = database.CacheFactory(factory, db)
		logger.Info("embedding cache enabled", "persistent", cfg.EmbedCacheDSN != "")
	}

	det, err := detector.New(factory, scorer.New(cfg.scorerConfig(), refs), cfg.detectorConfig(),
		detector.WithMetrics(businessMetrics),
		detector.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to initialize detector", "error", err)
		os.Exit(1)
	}

	apiCfg := api.Config{
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}),
		Logger:  logger,
	}

	// Asynchronous batch jobs need Redis
	var worker *queue.Worker
	if cfg.RedisAddr != "" {
		queueClient := queue.NewClient(queue.ClientConfig{
			RedisAddr:  cfg.RedisAddr,
			Retention:  cfg.JobRetention,
			GroupSize:  cfg.BatchGroupSize,
			GroupDelay: cfg.BatchGroupDelay,
			CallBudget: cfg.RemoteTimeout,
		})
		defer queueClient.Close()
		apiCfg.Jobs = queueClient

		worker = queue.NewWorker(queue.WorkerConfig{
			RedisAddr:   cfg.RedisAddr,
			Concurrency: cfg.WorkerConcurrency,
			APIKey:      cfg.WorkerAPIKey,
		}, det)
		if err := worker.Start(); err != nil {
			logger.Error("failed to start queue worker", "error", err)
			os.Exit(1)
		}
	}

	handler := withMiddleware(logger, api.NewHandler(det, apiCfg))

	// Batches are paced group by group, so writes may take a while
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("aidetector service starting",
			"port", cfg.Port,
			"provider", cfg.Provider,
			"completion_model", cfg.CompletionModel,
			"embedding_model", cfg.EmbeddingModel,
			"batch_group_size", cfg.BatchGroupSize,
			"batch_group_delay", cfg.BatchGroupDelay,
			"remote_rate_limit", cfg.RemoteRateLimit,
			"reference_placeholder", refs.IsPlaceholder(),
			"async_batch", cfg.RedisAddr != "",
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if worker != nil {
		worker.Shutdown()
	}

	logger.Info("server stopped")
}

// withMiddleware wraps h as tracing -> HTTP logging -> handlers, so the
// access log sees the server span started by otelhttp
func withMiddleware(logger *slog.Logger, h http.Handler) http.Handler {
	return tracing.HTTPMiddleware(serviceName)(logging.HTTPLoggingMiddleware(logger)(h))
}

// buildFactory returns the provider factory for the configured backend
func buildFactory(cfg config) llm.Factory {
	if cfg.Provider == providerOllama {
		return ollama.NewFactory(cfg.OllamaURL)
	}
	return openai.NewFactory(
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithTimeout(cfg.RemoteTimeout),
	)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
