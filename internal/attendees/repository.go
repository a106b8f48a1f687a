package attendees

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webinarwins/backend/internal/models"
)

const attendeeColumns = `id, webinar_id, name, email, attended, attendance_percent, focus_percent, attendance_minutes,
	join_time, exit_time, location, engagement_score, engagement_tier, message_count, question_count, created_at`

// Repository handles attendee and chat message persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendee repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ScanAttendee reads one row selected with attendeeColumns.
func ScanAttendee(row pgx.Row) (*models.Attendee, error) {
	var a models.Attendee
	var tier string
	err := row.Scan(&a.ID, &a.WebinarID, &a.Name, &a.Email, &a.Attended, &a.AttendancePercent, &a.FocusPercent,
		&a.AttendanceMinutes, &a.JoinTime, &a.ExitTime, &a.Location, &a.EngagementScore, &tier,
		&a.MessageCount, &a.QuestionCount, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if a.EngagementTier, err = models.ParseTier(tier); err != nil {
		return nil, fmt.Errorf("attendee %s: %w", a.ID, err)
	}
	return &a, nil
}

// ListByWebinar returns attendees ordered by score (highest first), then name.
// A non-nil tier restricts the result to that tier.
func (r *Repository) ListByWebinar(ctx context.Context, webinarID uuid.UUID, tier *models.Tier) ([]models.Attendee, error) {
	q := `SELECT ` + attendeeColumns + ` FROM attendees WHERE webinar_id = $1`
	args := []interface{}{webinarID}
	if tier != nil {
		q += ` AND engagement_tier = $2`
		args = append(args, tier.String())
	}
	q += ` ORDER BY engagement_score DESC, name ASC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Attendee
	for rows.Next() {
		a, err := ScanAttendee(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// MessagesByWebinar returns every chat message of a webinar keyed by attendee,
// each list in chat order.
func (r *Repository) MessagesByWebinar(ctx context.Context, webinarID uuid.UUID) (map[uuid.UUID][]models.ChatMessage, error) {
	const q = `SELECT m.id, m.attendee_id, m.message_text, m.sent_at, m.is_question
		FROM chat_messages m JOIN attendees a ON a.id = m.attendee_id
		WHERE a.webinar_id = $1 ORDER BY m.attendee_id, m.sent_at ASC NULLS LAST, m.seq ASC`
	rows, err := r.pool.Query(ctx, q, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.ChatMessage)
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.AttendeeID, &m.Text, &m.Timestamp, &m.IsQuestion); err != nil {
			return nil, err
		}
		out[m.AttendeeID] = append(out[m.AttendeeID], m)
	}
	return out, rows.Err()
}

// UpdateScores writes derived score fields for all given attendees in one transaction.
func (r *Repository) UpdateScores(ctx context.Context, list []models.Attendee) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE attendees SET engagement_score = $1, engagement_tier = $2, message_count = $3, question_count = $4
		WHERE id = $5`
	batch := &pgx.Batch{}
	for _, a := range list {
		batch.Queue(q, a.EngagementScore, a.EngagementTier.String(), a.MessageCount, a.QuestionCount, a.ID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("update scores: %w", err)
	}
	return tx.Commit(ctx)
}

// InsertTx stores aggregated attendees and their messages inside tx.
func InsertTx(ctx context.Context, tx pgx.Tx, webinarID uuid.UUID, items []Aggregated) error {
	attendeeRows, messageRows := copyRows(webinarID, items)
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"attendees"}, []string{
		"id", "webinar_id", "name", "email", "attended", "attendance_percent", "focus_percent", "attendance_minutes",
		"join_time", "exit_time", "location", "engagement_score", "engagement_tier", "message_count", "question_count",
	}, pgx.CopyFromRows(attendeeRows)); err != nil {
		return fmt.Errorf("copy attendees: %w", err)
	}
	if len(messageRows) == 0 {
		return nil
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"chat_messages"},
		[]string{"id", "attendee_id", "seq", "message_text", "sent_at", "is_question"},
		pgx.CopyFromRows(messageRows)); err != nil {
		return fmt.Errorf("copy chat messages: %w", err)
	}
	return nil
}

// copyRows assigns ids and returns COPY rows for attendees and messages.
// A message's seq is its position in the attendee's chat.
func copyRows(webinarID uuid.UUID, items []Aggregated) (attendeeRows, messageRows [][]interface{}) {
	attendeeRows = make([][]interface{}, 0, len(items))
	for i := range items {
		a := &items[i].Attendee
		a.ID = uuid.New()
		a.WebinarID = webinarID
		attendeeRows = append(attendeeRows, []interface{}{
			a.ID, a.WebinarID, a.Name, a.Email, a.Attended, a.AttendancePercent, a.FocusPercent, a.AttendanceMinutes,
			a.JoinTime, a.ExitTime, a.Location, a.EngagementScore, a.EngagementTier.String(), a.MessageCount, a.QuestionCount,
		})
		for j := range items[i].Messages {
			m := &items[i].Messages[j]
			m.ID = uuid.New()
			m.AttendeeID = a.ID
			messageRows = append(messageRows, []interface{}{m.ID, m.AttendeeID, j, m.Text, m.Timestamp, m.IsQuestion})
		}
	}
	return attendeeRows, messageRows
}
