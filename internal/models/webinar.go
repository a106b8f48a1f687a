package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer describes what the webinar is selling.
type Offer struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Price       *float64 `json:"price,omitempty" yaml:"price"`
	Deadline    string   `json:"deadline" yaml:"deadline"` // free text, e.g. "48 hours"
	ReplayURL   string   `json:"replay_url" yaml:"replay_url"`
}

// EmailTemplate is a stored subject/body pair with {variable} placeholders.
type EmailTemplate struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Webinar is one uploaded webinar with its offer context.
type Webinar struct {
	ID             uuid.UUID      `json:"id"`
	UserID         uuid.UUID      `json:"user_id"`
	Title          string         `json:"title"`
	Topic          string         `json:"topic"`
	Offer          Offer          `json:"offer"`
	NoShowTemplate *EmailTemplate `json:"no_show_template,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// HasNoShowTemplate reports whether a usable no-show template is configured.
func (w *Webinar) HasNoShowTemplate() bool {
	return w.NoShowTemplate != nil && w.NoShowTemplate.Subject != "" && w.NoShowTemplate.Body != ""
}

// WebinarStats summarizes the attendee funnel of a webinar.
type WebinarStats struct {
	TotalRegistrants int            `json:"total_registrants"`
	TotalAttended    int            `json:"total_attended"`
	TotalNoShows     int            `json:"total_no_shows"`
	AttendanceRate   float64        `json:"attendance_rate"`
	TotalMessages    int            `json:"total_messages"`
	AvgFocusPercent  float64        `json:"avg_focus_percent"`
	AvgAttendancePct float64        `json:"avg_attendance_percent"`
	TierCounts       map[string]int `json:"tier_counts"`
	EmailsGenerated  int            `json:"emails_generated"`
	EmailsSent       int            `json:"emails_sent"`
}
