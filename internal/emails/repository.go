package emails

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webinarwins/backend/internal/models"
)

// ErrNotFound is returned when an email does not exist or belongs to another user.
var ErrNotFound = errors.New("email not found")

const emailColumns = `e.id, e.attendee_id, e.subject_line, e.email_body, e.engagement_score, e.engagement_tier,
	e.metadata, e.user_edited, e.user_notes, e.sent_status, e.sent_at, e.created_at, e.updated_at`

const recipientColumns = emailColumns + `, a.name, a.email, a.webinar_id`

// Repository handles generated email persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEmail(row pgx.Row, extra ...interface{}) (*models.GeneratedEmail, error) {
	var e models.GeneratedEmail
	var tier string
	dest := []interface{}{&e.ID, &e.AttendeeID, &e.Subject, &e.Body, &e.EngagementScore, &tier,
		&e.Metadata, &e.UserEdited, &e.UserNotes, &e.SentStatus, &e.SentAt, &e.CreatedAt, &e.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var err error
	if e.EngagementTier, err = models.ParseTier(tier); err != nil {
		return nil, fmt.Errorf("email %s: %w", e.ID, err)
	}
	return &e, nil
}

func scanRecipient(row pgx.Row) (*models.EmailWithRecipient, error) {
	var r models.EmailWithRecipient
	e, err := scanEmail(row, &r.AttendeeName, &r.AttendeeEmail, &r.WebinarID)
	if err != nil {
		return nil, err
	}
	r.GeneratedEmail = *e
	return &r, nil
}

// Upsert inserts or replaces the email of e.AttendeeID. Sent status survives
// replacement; manual edits do not. e is updated with the stored row.
func (r *Repository) Upsert(ctx context.Context, e *models.GeneratedEmail) error {
	const q = `INSERT INTO generated_emails (attendee_id, subject_line, email_body, engagement_score, engagement_tier, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (attendee_id) DO UPDATE SET
			subject_line = EXCLUDED.subject_line,
			email_body = EXCLUDED.email_body,
			engagement_score = EXCLUDED.engagement_score,
			engagement_tier = EXCLUDED.engagement_tier,
			metadata = EXCLUDED.metadata,
			user_edited = FALSE,
			updated_at = NOW()
		RETURNING id, user_edited, user_notes, sent_status, sent_at, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.AttendeeID, e.Subject, e.Body, e.EngagementScore, e.EngagementTier.String(), e.Metadata).
		Scan(&e.ID, &e.UserEdited, &e.UserNotes, &e.SentStatus, &e.SentAt, &e.CreatedAt, &e.UpdatedAt)
}

// ExistingAttendees returns the attendees of a webinar that already have an email.
func (r *Repository) ExistingAttendees(ctx context.Context, webinarID uuid.UUID) (map[uuid.UUID]bool, error) {
	const q = `SELECT e.attendee_id FROM generated_emails e JOIN attendees a ON a.id = e.attendee_id
		WHERE a.webinar_id = $1`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// ListByWebinar returns a webinar's emails with recipients, best leads first.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID uuid.UUID) ([]models.EmailWithRecipient, error) {
	q := `SELECT ` + recipientColumns + ` FROM generated_emails e JOIN attendees a ON a.id = e.attendee_id
		WHERE a.webinar_id = $1 ORDER BY e.engagement_score DESC, a.name ASC`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.EmailWithRecipient
	for rows.Next() {
		e, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// GetForOwner returns an email with its recipient when the owning webinar belongs to userID.
func (r *Repository) GetForOwner(ctx context.Context, id, userID uuid.UUID) (*models.EmailWithRecipient, error) {
	q := `SELECT ` + recipientColumns + ` FROM generated_emails e
		JOIN attendees a ON a.id = e.attendee_id
		JOIN webinars w ON w.id = a.webinar_id
		WHERE e.id = $1 AND w.user_id = $2`
	return scanRecipient(r.pool.QueryRow(ctx, q, id, userID))
}

// UpdateContent applies a manual edit. Nil fields are left unchanged.
func (r *Repository) UpdateContent(ctx context.Context, id uuid.UUID, subject, body, notes *string) error {
	const q = `UPDATE generated_emails SET
			subject_line = COALESCE($2, subject_line),
			email_body = COALESCE($3, email_body),
			user_notes = COALESCE($4, user_notes),
			user_edited = user_edited OR $2::text IS NOT NULL OR $3::text IS NOT NULL,
			updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, subject, body, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSent records a delivered email.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE generated_emails SET sent_status = $2, sent_at = $3, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, models.SentStatusSent, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SentAttendees returns the attendees of a webinar whose email was delivered.
func (r *Repository) SentAttendees(ctx context.Context, webinarID uuid.UUID) (map[uuid.UUID]bool, error) {
	const q = `SELECT e.attendee_id FROM generated_emails e JOIN attendees a ON a.id = e.attendee_id
		WHERE a.webinar_id = $1 AND e.sent_status = $2`
	rows, err := r.pool.Query(ctx, q, webinarID, models.SentStatusSent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
