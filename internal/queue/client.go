package queue

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/aidetector/internal/models"
)

// Task type and queue names
const (
	TypeAnalyzeBatch = "aidetector:analyze_batch"
	QueueBatch       = "batch-analysis"
)

// DefaultRetention is how long finished jobs and their results are kept in Redis
const DefaultRetention = 24 * time.Hour

// Pacing defaults used to size the task deadline
const (
	DefaultGroupSize  = 3
	DefaultCallBudget = 2 * time.Minute
	minTaskTimeout    = 30 * time.Minute
)

// ErrJobNotFound is returned for unknown or expired job IDs
var ErrJobNotFound = errors.New("job not found")

// AnalyzeBatchPayload represents the payload for an asynchronous batch analysis.
// Credentials are never part of the payload; the worker uses its own.
type AnalyzeBatchPayload struct {
	JobID string      `json:"job_id"`
	Text  string      `json:"text"` // gzip + base64 encoded, one item per line
	Lines int         `json:"lines"`
	Mode  models.Mode `json:"mode"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// JobStatus is the externally visible state of a batch job
type JobStatus struct {
	JobID       string              `json:"job_id"`
	State       string              `json:"state"`
	Result      *models.BatchResult `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// Client wraps the Asynq client and inspector for batch jobs
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	retention time.Duration

	groupSize  int
	groupDelay time.Duration
	callBudget time.Duration
}

// ClientConfig contains configuration for the queue client.
// GroupSize, GroupDelay and CallBudget mirror the worker's batch pacing and
// size each task's deadline.
type ClientConfig struct {
	RedisAddr string
	Retention time.Duration

	GroupSize  int
	GroupDelay time.Duration
	CallBudget time.Duration // upper bound for one group's remote calls
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	groupSize := cfg.GroupSize
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}

	return &Client{
		client:     asynq.NewClient(redisOpt),
		inspector:  asynq.NewInspector(redisOpt),
		retention:  retention,
		groupSize:  groupSize,
		groupDelay: max(cfg.GroupDelay, 0),
		callBudget: cmp.Or(cfg.CallBudget, DefaultCallBudget),
	}
}

// EnqueueBatch enqueues lines for asynchronous batch analysis and returns the job ID
func (c *Client) EnqueueBatch(ctx context.Context, lines []string, mode models.Mode) (string, error) {
	task, err := newBatchTask(ctx, uuid.NewString(), lines, mode)
	if err != nil {
		return "", err
	}

	opts := []asynq.Option{
		asynq.MaxRetry(0), // item failures are already part of the result
		asynq.Timeout(c.taskTimeout(len(lines))),
		asynq.Queue(QueueBatch),
		asynq.Retention(c.retention),
	}

	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue batch task: %w", err)
	}

	return info.ID, nil
}

// taskTimeout grows with the number of groups the worker will run, never
// dropping below minTaskTimeout
func (c *Client) taskTimeout(lines int) time.Duration {
	groups := (lines + c.groupSize - 1) / c.groupSize
	return max(time.Duration(groups)*(c.groupDelay+c.callBudget), minTaskTimeout)
}

// JobStatus looks up a batch job and decodes its result once completed
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	info, err := c.inspector.GetTaskInfo(QueueBatch, jobID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task info: %w", err)
	}

	return jobStatusFromInfo(info)
}

// Close closes the client connections
func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

func newBatchTask(ctx context.Context, jobID string, lines []string, mode models.Mode) (*asynq.Task, error) {
	text, err := compressText(strings.Join(lines, "\n"))
	if err != nil {
		return nil, fmt.Errorf("failed to compress batch text: %w", err)
	}

	payload := AnalyzeBatchPayload{
		JobID:      jobID,
		Text:       text,
		Lines:      len(lines),
		Mode:       mode,
		EnqueuedAt: time.Now().UnixNano(), // Record enqueue time for queue wait metrics
	}

	// Add tracing context if available
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", TypeAnalyzeBatch),
			attribute.String("task.id", jobID),
			attribute.Int("batch.lines", len(lines)),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	return asynq.NewTask(TypeAnalyzeBatch, payloadBytes, asynq.TaskID(jobID)), nil
}

func jobStatusFromInfo(info *asynq.TaskInfo) (*JobStatus, error) {
	status := &JobStatus{
		JobID: info.ID,
		State: info.State.String(),
	}

	switch info.State {
	case asynq.TaskStateCompleted:
		var result models.BatchResult
		if err := json.Unmarshal(info.Result, &result); err != nil {
			return nil, fmt.Errorf("failed to decode batch result: %w", err)
		}
		status.Result = &result
		if !info.CompletedAt.IsZero() {
			completedAt := info.CompletedAt
			status.CompletedAt = &completedAt
		}
	case asynq.TaskStateArchived, asynq.TaskStateRetry:
		status.Error = info.LastErr
	}

	return status, nil
}
