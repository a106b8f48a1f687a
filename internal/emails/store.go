package emails

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/webinarwins/backend/internal/models"
)

// Store is the email persistence used by the orchestrator, sender and handler.
type Store interface {
	Upsert(ctx context.Context, e *models.GeneratedEmail) error
	ExistingAttendees(ctx context.Context, webinarID uuid.UUID) (map[uuid.UUID]bool, error)
	SentAttendees(ctx context.Context, webinarID uuid.UUID) (map[uuid.UUID]bool, error)
	ListByWebinar(ctx context.Context, webinarID uuid.UUID) ([]models.EmailWithRecipient, error)
	GetForOwner(ctx context.Context, id, userID uuid.UUID) (*models.EmailWithRecipient, error)
	UpdateContent(ctx context.Context, id uuid.UUID, subject, body, notes *string) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// AttendeeSource reads scored attendees and their chat.
type AttendeeSource interface {
	ListByWebinar(ctx context.Context, webinarID uuid.UUID, tier *models.Tier) ([]models.Attendee, error)
	MessagesByWebinar(ctx context.Context, webinarID uuid.UUID) (map[uuid.UUID][]models.ChatMessage, error)
}
