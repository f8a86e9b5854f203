package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/zombar/aidetector/internal/detector"
	"github.com/zombar/aidetector/internal/queue"
	"github.com/zombar/aidetector/internal/scorer"
)

// Supported provider backends
const (
	providerOpenAI = "openai"
	providerOllama = "ollama"
)

type config struct {
	Port     string
	LogLevel string

	Provider        string
	OpenAIBaseURL   string
	OllamaURL       string
	CompletionModel string
	EmbeddingModel  string
	RemoteTimeout   time.Duration

	CredentialPrefix string
	HybridMinWords   int
	BatchGroupSize   int
	BatchGroupDelay  time.Duration
	RemoteRateLimit  float64
	RemoteRateBurst  int

	ReferenceVectorsPath string
	EmbedCache           bool
	EmbedCacheDSN        string

	RedisAddr         string
	WorkerAPIKey      string
	WorkerConcurrency int
	JobRetention      time.Duration
}

// loadConfig reads flags from args with defaults taken from the environment
func loadConfig(args []string) (config, error) {
	defaults := detector.DefaultConfig()

	var cfg config
	fs := flag.NewFlagSet("aidetector", flag.ContinueOnError)

	fs.StringVar(&cfg.Port, "port", getEnv("PORT", "8080"), "Server port (env: PORT)")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error (env: LOG_LEVEL)")

	fs.StringVar(&cfg.Provider, "provider", getEnv("PROVIDER", providerOpenAI), "Model backend: openai or ollama (env: PROVIDER)")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai-base-url", getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "OpenAI-compatible API base URL (env: OPENAI_BASE_URL)")
	fs.StringVar(&cfg.OllamaURL, "ollama-url", getEnv("OLLAMA_URL", "http://localhost:11434"), "Ollama API URL (env: OLLAMA_URL)")
	fs.StringVar(&cfg.CompletionModel, "completion-model", getEnv("COMPLETION_MODEL", scorer.DefaultCompletionModel), "Completion model (env: COMPLETION_MODEL)")
	fs.StringVar(&cfg.EmbeddingModel, "embedding-model", getEnv("EMBEDDING_MODEL", scorer.DefaultEmbeddingModel), "Embedding model (env: EMBEDDING_MODEL)")
	fs.DurationVar(&cfg.RemoteTimeout, "remote-timeout", getEnvDuration("REMOTE_TIMEOUT", 2*time.Minute), "Timeout per OpenAI-compatible call (env: REMOTE_TIMEOUT)")

	fs.StringVar(&cfg.CredentialPrefix, "credential-prefix", getEnv("CREDENTIAL_PREFIX", defaults.CredentialPrefix), "Required credential prefix (env: CREDENTIAL_PREFIX)")
	fs.IntVar(&cfg.HybridMinWords, "hybrid-min-words", getEnvInt("HYBRID_MIN_WORDS", defaults.HybridMinWords), "Word count at which enhanced mode adds embedding scoring (env: HYBRID_MIN_WORDS)")
	fs.IntVar(&cfg.BatchGroupSize, "batch-group-size", getEnvInt("BATCH_GROUP_SIZE", defaults.GroupSize), "Batch items analyzed concurrently (env: BATCH_GROUP_SIZE)")
	fs.DurationVar(&cfg.BatchGroupDelay, "batch-group-delay", getEnvDuration("BATCH_GROUP_DELAY", defaults.GroupDelay), "Pause between batch groups (env: BATCH_GROUP_DELAY)")
	fs.Float64Var(&cfg.RemoteRateLimit, "remote-rate-limit", getEnvFloat("REMOTE_RATE_LIMIT", 0), "Remote calls per second across all requests, 0 disables (env: REMOTE_RATE_LIMIT)")
	fs.IntVar(&cfg.RemoteRateBurst, "remote-rate-burst", getEnvInt("REMOTE_RATE_BURST", 3), "Remote call burst size (env: REMOTE_RATE_BURST)")

	fs.StringVar(&cfg.ReferenceVectorsPath, "reference-vectors", getEnv("REFERENCE_VECTORS_PATH", ""), "JSON file with ai/human reference vectors (env: REFERENCE_VECTORS_PATH)")
	fs.BoolVar(&cfg.EmbedCache, "embed-cache", getEnvBool("EMBED_CACHE", true), "Cache embeddings in SQLite (env: EMBED_CACHE)")
	fs.StringVar(&cfg.EmbedCacheDSN, "embed-cache-dsn", getEnv("EMBED_CACHE_DSN", ""), "SQLite DSN for the embedding cache, in-memory when empty (env: EMBED_CACHE_DSN)")

	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", ""), "Redis address, enables asynchronous batch jobs (env: REDIS_ADDR)")
	fs.StringVar(&cfg.WorkerAPIKey, "worker-api-key", getEnv("WORKER_API_KEY", ""), "Credential used by the batch worker (env: WORKER_API_KEY)")
	fs.IntVar(&cfg.WorkerConcurrency, "worker-concurrency", getEnvInt("WORKER_CONCURRENCY", 2), "Batch jobs processed concurrently (env: WORKER_CONCURRENCY)")
	fs.DurationVar(&cfg.JobRetention, "job-retention", getEnvDuration("JOB_RETENTION", queue.DefaultRetention), "How long finished jobs are kept (env: JOB_RETENTION)")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if cfg.Provider != providerOpenAI && cfg.Provider != providerOllama {
		return config{}, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if cfg.RedisAddr != "" && cfg.WorkerAPIKey == "" {
		return config{}, fmt.Errorf("WORKER_API_KEY is required when REDIS_ADDR is set")
	}
	if err := cfg.detectorConfig().Validate(); err != nil {
		return config{}, err
	}

	return cfg, nil
}

func (c config) detectorConfig() detector.Config {
	return detector.Config{
		HybridMinWords:   c.HybridMinWords,
		GroupSize:        c.BatchGroupSize,
		GroupDelay:       c.BatchGroupDelay,
		CredentialPrefix: c.CredentialPrefix,
	}
}

func (c config) scorerConfig() scorer.Config {
	cfg := scorer.DefaultConfig()
	cfg.CompletionModel = c.CompletionModel
	cfg.EmbeddingModel = c.EmbeddingModel
	return cfg
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
