package emails

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/pkg/workpool"
)

// Report statuses.
const (
	StatusCompleted      = "completed"
	StatusPartialSuccess = "partial_success"
	StatusFailed         = "failed"
)

// MaxReportedErrors caps the error samples kept in a report.
const MaxReportedErrors = 10

// GenerateRequest scopes a bulk generation run.
type GenerateRequest struct {
	Tier       *models.Tier `json:"tier,omitempty"`
	Regenerate bool         `json:"regenerate"`
}

// Report is the outcome of a bulk generation run. Counts are exact even when
// Errors is truncated.
type Report struct {
	Status         string         `json:"status"`
	Message        string         `json:"message"`
	TotalAttendees int            `json:"total_attendees"`
	Generated      int            `json:"generated"`
	Skipped        int            `json:"skipped"`
	Failed         int            `json:"failed"`
	TierBreakdown  map[string]int `json:"tier_breakdown"`
	Errors         []string       `json:"errors"`
}

func (r *Report) addError(msg string) {
	if len(r.Errors) < MaxReportedErrors {
		r.Errors = append(r.Errors, msg)
	}
}

func (r *Report) finish() {
	switch {
	case r.Failed == 0:
		r.Status = StatusCompleted
	case r.Generated > 0:
		r.Status = StatusPartialSuccess
	default:
		r.Status = StatusFailed
	}
	r.Message = fmt.Sprintf("Generated %d emails, skipped %d, failed %d", r.Generated, r.Skipped, r.Failed)
}

// Orchestrator runs the generator over a webinar's attendees in fixed-width batches.
type Orchestrator struct {
	store     Store
	attendees AttendeeSource
	generator *Generator
	width     int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator. A zero timeout leaves the run bounded only by ctx.
func NewOrchestrator(store Store, attendees AttendeeSource, generator *Generator, width int, timeout time.Duration, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if width <= 0 {
		width = workpool.DefaultWidth
	}
	return &Orchestrator{store: store, attendees: attendees, generator: generator, width: width, timeout: timeout, logger: logger}
}

// Generate creates emails for the webinar's attendees. Attendees that already
// have an email are skipped unless req.Regenerate is set. Per-attendee
// failures land in the report; the error return is for failures to load the
// work itself.
func (o *Orchestrator) Generate(ctx context.Context, w *models.Webinar, req GenerateRequest) (*Report, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	list, err := o.attendees.ListByWebinar(ctx, w.ID, req.Tier)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	messages, err := o.attendees.MessagesByWebinar(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	report := &Report{TotalAttendees: len(list), TierBreakdown: map[string]int{}, Errors: []string{}}
	todo := list
	if !req.Regenerate {
		existing, err := o.store.ExistingAttendees(ctx, w.ID)
		if err != nil {
			return nil, fmt.Errorf("list existing emails: %w", err)
		}
		todo = make([]models.Attendee, 0, len(list))
		for _, a := range list {
			if existing[a.ID] {
				report.Skipped++
				continue
			}
			todo = append(todo, a)
		}
	}

	if err := o.generator.Ready(todo, w); err != nil {
		return nil, err
	}

	outcomes := workpool.Run(ctx, o.width, len(todo), func(ctx context.Context, i int) (*models.GeneratedEmail, error) {
		a := &todo[i]
		e, err := o.generator.Generate(ctx, a, w, messages[a.ID])
		if err != nil {
			return nil, err
		}
		if err := o.store.Upsert(ctx, e); err != nil {
			return nil, fmt.Errorf("save: %w", err)
		}
		return e, nil
	})

	for i, out := range outcomes {
		a := &todo[i]
		switch {
		case !out.Ran:
			report.Failed++
			report.addError(fmt.Sprintf("%s: not started: %v", a.Email, out.Err))
		case out.Err != nil:
			report.Failed++
			report.addError(fmt.Sprintf("%s: %v", a.Email, out.Err))
		default:
			report.Generated++
			report.TierBreakdown[out.Value.EngagementTier.String()]++
		}
	}
	report.finish()

	fields := []zap.Field{
		zap.String("webinar_id", w.ID.String()),
		zap.Int("generated", report.Generated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		o.logger.Warn("email generation timed out", fields...)
	} else {
		o.logger.Info("email generation finished", fields...)
	}
	return report, nil
}
