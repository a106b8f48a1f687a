package webinars

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webinarwins/backend/internal/attendees"
	"github.com/webinarwins/backend/internal/models"
)

// ErrNotFound is returned when a webinar does not exist.
var ErrNotFound = errors.New("webinar not found")

const webinarColumns = `id, user_id, title, topic, offer_name, offer_description, price, deadline, replay_url,
	no_show_template_subject, no_show_template_body, created_at, updated_at`

// Repository handles webinar persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a webinar repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanWebinar(row pgx.Row) (*models.Webinar, error) {
	var w models.Webinar
	var subject, body *string
	err := row.Scan(&w.ID, &w.UserID, &w.Title, &w.Topic, &w.Offer.Name, &w.Offer.Description, &w.Offer.Price,
		&w.Offer.Deadline, &w.Offer.ReplayURL, &subject, &body, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if subject != nil || body != nil {
		w.NoShowTemplate = &models.EmailTemplate{}
		if subject != nil {
			w.NoShowTemplate.Subject = *subject
		}
		if body != nil {
			w.NoShowTemplate.Body = *body
		}
	}
	return &w, nil
}

func templateArgs(t *models.EmailTemplate) (subject, body *string) {
	if t == nil {
		return nil, nil
	}
	return &t.Subject, &t.Body
}

// Create inserts the webinar and all of its attendees and chat messages in
// one transaction. Any failure leaves nothing behind.
func (r *Repository) Create(ctx context.Context, w *models.Webinar, items []attendees.Aggregated) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	subject, body := templateArgs(w.NoShowTemplate)
	const q = `INSERT INTO webinars (user_id, title, topic, offer_name, offer_description, price, deadline, replay_url,
			no_show_template_subject, no_show_template_body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, q, w.UserID, w.Title, w.Topic, w.Offer.Name, w.Offer.Description, w.Offer.Price,
		w.Offer.Deadline, w.Offer.ReplayURL, subject, body).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return fmt.Errorf("insert webinar: %w", err)
	}
	if len(items) > 0 {
		if err := attendees.InsertTx(ctx, tx, w.ID, items); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetByID returns a webinar by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error) {
	q := `SELECT ` + webinarColumns + ` FROM webinars WHERE id = $1`
	return scanWebinar(r.pool.QueryRow(ctx, q, id))
}

// ListByUser returns a user's webinars, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Webinar, error) {
	q := `SELECT ` + webinarColumns + ` FROM webinars WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Webinar
	for rows.Next() {
		w, err := scanWebinar(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *w)
	}
	return list, rows.Err()
}

// Update writes every editable field of w.
func (r *Repository) Update(ctx context.Context, w *models.Webinar) error {
	subject, body := templateArgs(w.NoShowTemplate)
	const q = `UPDATE webinars SET title = $1, topic = $2, offer_name = $3, offer_description = $4, price = $5,
			deadline = $6, replay_url = $7, no_show_template_subject = $8, no_show_template_body = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, w.Title, w.Topic, w.Offer.Name, w.Offer.Description, w.Offer.Price,
		w.Offer.Deadline, w.Offer.ReplayURL, subject, body, w.ID).Scan(&w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes a webinar; attendees, messages and emails go with it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM webinars WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates the attendee funnel and email progress of a webinar.
func (r *Repository) Stats(ctx context.Context, id uuid.UUID) (*models.WebinarStats, error) {
	s := &models.WebinarStats{TierCounts: make(map[string]int, models.NumTiers)}
	for _, tier := range models.Tiers() {
		s.TierCounts[tier.String()] = 0
	}

	const totals = `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE attended),
			COALESCE(AVG(focus_percent) FILTER (WHERE attended), 0),
			COALESCE(AVG(attendance_percent) FILTER (WHERE attended), 0),
			COALESCE(SUM(message_count), 0)
		FROM attendees WHERE webinar_id = $1`
	if err := r.pool.QueryRow(ctx, totals, id).Scan(&s.TotalRegistrants, &s.TotalAttended,
		&s.AvgFocusPercent, &s.AvgAttendancePct, &s.TotalMessages); err != nil {
		return nil, fmt.Errorf("attendee totals: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT engagement_tier, COUNT(*) FROM attendees WHERE webinar_id = $1 GROUP BY engagement_tier`, id)
	if err != nil {
		return nil, fmt.Errorf("tier counts: %w", err)
	}
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			rows.Close()
			return nil, err
		}
		s.TierCounts[tier] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const emails = `SELECT COUNT(*), COUNT(*) FILTER (WHERE e.sent_status = 'sent')
		FROM generated_emails e JOIN attendees a ON a.id = e.attendee_id
		WHERE a.webinar_id = $1`
	if err := r.pool.QueryRow(ctx, emails, id).Scan(&s.EmailsGenerated, &s.EmailsSent); err != nil {
		return nil, fmt.Errorf("email totals: %w", err)
	}

	FinishStats(s)
	return s, nil
}

// FinishStats derives no-shows and rounds the rates to one decimal.
func FinishStats(s *models.WebinarStats) {
	s.TotalNoShows = s.TotalRegistrants - s.TotalAttended
	if s.TotalRegistrants > 0 {
		s.AttendanceRate = round1(float64(s.TotalAttended) / float64(s.TotalRegistrants) * 100)
	}
	s.AvgFocusPercent = round1(s.AvgFocusPercent)
	s.AvgAttendancePct = round1(s.AvgAttendancePct)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
