package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueGeneration is the Redis list key for email generation jobs.
	QueueGeneration = "worker:generation"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// DefaultStatusTTL is how long job status and results are kept.
	DefaultStatusTTL = 24 * time.Hour

	statusKeyPrefix = "worker:job:"
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeGeneration JobType = "email_generation"
)

// Job states recorded in the status store.
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// GenerationPayload is the payload for email generation jobs.
type GenerationPayload struct {
	UserID     uuid.UUID `json:"user_id"`
	WebinarID  uuid.UUID `json:"webinar_id"`
	Tier       string    `json:"tier,omitempty"`
	Regenerate bool      `json:"regenerate"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Status is the externally visible state of a job.
type Status struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	State     string          `json:"state"`
	OwnerID   uuid.UUID       `json:"-"`
	Attempt   int             `json:"attempt"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type storedStatus struct {
	Status
	Owner uuid.UUID `json:"owner_id"`
}

// Queue enqueues and dequeues jobs via Redis and tracks their status.
type Queue struct {
	client    *redis.Client
	block     time.Duration
	statusTTL time.Duration
	logger    *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, statusTTL time.Duration, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if statusTTL <= 0 {
		statusTTL = DefaultStatusTTL
	}
	return &Queue{client: client, block: 5 * time.Second, statusTTL: statusTTL, logger: logger}
}

// EnqueueGeneration enqueues an email generation job and records it as queued.
func (q *Queue) EnqueueGeneration(ctx context.Context, payload GenerationPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeGeneration,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	if err := q.SetStatus(ctx, payload.UserID, Status{ID: job.ID, Type: job.Type, State: StateQueued}); err != nil {
		return "", err
	}
	if err := q.client.RPush(ctx, QueueGeneration, raw).Err(); err != nil {
		return "", fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued generation job", zap.String("job_id", job.ID), zap.String("webinar_id", payload.WebinarID.String()))
	return job.ID, nil
}

// Dequeue blocks until a job is available, the block interval passes or ctx is done.
// A nil job with nil error means nothing was available.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, q.block, QueueGeneration).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead
// and reports dead as true.
func (q *Queue) Retry(ctx context.Context, job *Job) (dead bool, err error) {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return false, err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return true, nil
	}
	if err := q.client.RPush(ctx, QueueGeneration, raw).Err(); err != nil {
		return false, err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return false, nil
}

// SetStatus stores the status of a job owned by ownerID.
func (q *Queue) SetStatus(ctx context.Context, ownerID uuid.UUID, st Status) error {
	st.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(storedStatus{Status: st, Owner: ownerID})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := q.client.Set(ctx, statusKeyPrefix+st.ID, raw, q.statusTTL).Err(); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// GetStatus returns the status of a job.
func (q *Queue) GetStatus(ctx context.Context, id string) (*Status, error) {
	raw, err := q.client.Get(ctx, statusKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	var st storedStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	st.Status.OwnerID = st.Owner
	return &st.Status, nil
}
