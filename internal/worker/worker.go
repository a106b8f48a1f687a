package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webinarwins/backend/internal/emails"
	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/internal/webinars"
	"github.com/webinarwins/backend/pkg/queue"
)

// errPermanent marks job failures that a retry cannot fix.
var errPermanent = errors.New("permanent job failure")

// JobQueue is the subset of *queue.Queue the processor uses.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
	SetStatus(ctx context.Context, ownerID uuid.UUID, st queue.Status) error
}

// WebinarGetter loads the webinar a job refers to.
type WebinarGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
}

// Generator runs one batch generation. *emails.Orchestrator satisfies it.
type Generator interface {
	Generate(ctx context.Context, w *models.Webinar, req emails.GenerateRequest) (*emails.Report, error)
}

// GenerationProcessor consumes email generation jobs and records their reports.
type GenerationProcessor struct {
	queue     JobQueue
	webinars  WebinarGetter
	generator Generator
	backoff   time.Duration
	logger    *zap.Logger
}

// NewGenerationProcessor creates an email generation processor.
func NewGenerationProcessor(q JobQueue, webinars WebinarGetter, generator Generator, logger *zap.Logger) *GenerationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationProcessor{queue: q, webinars: webinars, generator: generator, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one generation job and returns its report.
func (p *GenerationProcessor) Process(ctx context.Context, job *queue.Job) (*emails.Report, error) {
	if job.Type != queue.JobTypeGeneration {
		return nil, fmt.Errorf("%w: unknown job type %s", errPermanent, job.Type)
	}
	var payload queue.GenerationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: unmarshal payload: %v", errPermanent, err)
	}

	w, err := p.webinars.GetByID(ctx, payload.WebinarID)
	if errors.Is(err, webinars.ErrNotFound) || (err == nil && w == nil) {
		return nil, fmt.Errorf("%w: webinar %s not found", errPermanent, payload.WebinarID)
	}
	if err != nil {
		return nil, fmt.Errorf("load webinar %s: %w", payload.WebinarID, err)
	}
	if w.UserID != payload.UserID {
		return nil, fmt.Errorf("%w: webinar %s not owned by job owner", errPermanent, payload.WebinarID)
	}

	req := emails.GenerateRequest{Regenerate: payload.Regenerate}
	if payload.Tier != "" {
		tier, err := models.ParseTier(payload.Tier)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errPermanent, err)
		}
		req.Tier = &tier
	}

	if err := p.queue.SetStatus(ctx, payload.UserID, queue.Status{
		ID: job.ID, Type: job.Type, State: queue.StateRunning, Attempt: job.Attempt,
	}); err != nil {
		p.logger.Warn("set running status", zap.String("job_id", job.ID), zap.Error(err))
	}

	report, err := p.generator.Generate(ctx, w, req)
	if errors.Is(err, emails.ErrOracleNotConfigured) {
		return nil, fmt.Errorf("%w: %v", errPermanent, err)
	}
	return report, err
}

// handle processes a job and records its outcome. It reports whether the
// caller should back off before the next dequeue.
func (p *GenerationProcessor) handle(ctx context.Context, job *queue.Job) bool {
	owner := jobOwner(job)
	log := p.logger.With(zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))

	report, err := p.Process(ctx, job)
	if err == nil {
		raw, mErr := json.Marshal(report)
		if mErr != nil {
			err = fmt.Errorf("%w: marshal report: %v", errPermanent, mErr)
		} else {
			if sErr := p.queue.SetStatus(ctx, owner, queue.Status{
				ID: job.ID, Type: job.Type, State: queue.StateCompleted, Attempt: job.Attempt, Result: raw,
			}); sErr != nil {
				log.Error("set completed status", zap.Error(sErr))
			}
			log.Info("generation job completed",
				zap.String("status", report.Status),
				zap.Int("generated", report.Generated),
				zap.Int("failed", report.Failed),
			)
			return false
		}
	}

	log.Error("generation job failed", zap.Error(err))
	dead := errors.Is(err, errPermanent)
	if !dead {
		var rErr error
		dead, rErr = p.queue.Retry(ctx, job)
		if rErr != nil {
			log.Error("retry enqueue failed", zap.Error(rErr))
			dead = true
		}
	}
	state := queue.StateQueued
	if dead {
		state = queue.StateFailed
	}
	if sErr := p.queue.SetStatus(ctx, owner, queue.Status{
		ID: job.ID, Type: job.Type, State: state, Attempt: job.Attempt, Error: err.Error(),
	}); sErr != nil {
		log.Error("set failed status", zap.Error(sErr))
	}
	return !dead
}

func jobOwner(job *queue.Job) uuid.UUID {
	var payload queue.GenerationPayload
	_ = json.Unmarshal(job.Payload, &payload)
	return payload.UserID
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *GenerationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("generation worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if p.handle(ctx, job) {
			p.sleep(ctx)
		}
	}
}

func (p *GenerationProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
