package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendee is one registrant of a webinar with engagement metrics.
type Attendee struct {
	ID                uuid.UUID  `json:"id"`
	WebinarID         uuid.UUID  `json:"webinar_id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Attended          bool       `json:"attended"`
	AttendancePercent float64    `json:"attendance_percent"`
	FocusPercent      float64    `json:"focus_percent"`
	AttendanceMinutes int        `json:"attendance_minutes"`
	JoinTime          *time.Time `json:"join_time,omitempty"`
	ExitTime          *time.Time `json:"exit_time,omitempty"`
	Location          string     `json:"location,omitempty"`
	EngagementScore   int        `json:"engagement_score"`
	EngagementTier    Tier       `json:"engagement_tier"`
	MessageCount      int        `json:"message_count"`
	QuestionCount     int        `json:"question_count"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ChatMessage is one chat line attributed to an attendee.
type ChatMessage struct {
	ID         uuid.UUID  `json:"id"`
	AttendeeID uuid.UUID  `json:"attendee_id"`
	Text       string     `json:"message_text"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	IsQuestion bool       `json:"is_question"`
}
