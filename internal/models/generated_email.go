package models

import (
	"time"

	"github.com/google/uuid"
)

// SentStatus for generated emails.
const (
	SentStatusUnsent = "unsent"
	SentStatusSent   = "sent"
)

// Generation methods recorded in email metadata.
const (
	GenerationMethodAI           = "ai"
	GenerationMethodTemplate     = "template"
	GenerationMethodTemplateBulk = "template_bulk_send"
)

// ChatReference is a chat excerpt used to personalize an email.
type ChatReference struct {
	Text       string     `json:"text"`
	IsQuestion bool       `json:"is_question"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// EmailMetadata records how an email was personalized.
type EmailMetadata struct {
	GenerationMethod string          `json:"generation_method"`
	MessageCount     int             `json:"message_count"`
	QuestionCount    int             `json:"question_count"`
	ChatReferences   []ChatReference `json:"chat_references,omitempty"`
	Model            string          `json:"model,omitempty"`
	TokensUsed       int             `json:"tokens_used,omitempty"`
	Temperature      float64         `json:"temperature,omitempty"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	Probability      int             `json:"selected_version_probability,omitempty"`
	Attempts         int             `json:"attempts,omitempty"`
}

// GeneratedEmail is the follow-up email for one attendee.
type GeneratedEmail struct {
	ID              uuid.UUID     `json:"id"`
	AttendeeID      uuid.UUID     `json:"attendee_id"`
	Subject         string        `json:"subject_line"`
	Body            string        `json:"email_body"`
	EngagementScore int           `json:"engagement_score"`
	EngagementTier  Tier          `json:"engagement_tier"`
	Metadata        EmailMetadata `json:"personalization_elements"`
	UserEdited      bool          `json:"user_edited"`
	UserNotes       string        `json:"user_notes,omitempty"`
	SentStatus      string        `json:"sent_status"`
	SentAt          *time.Time    `json:"sent_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsSent reports whether the email has been delivered for real.
func (e *GeneratedEmail) IsSent() bool {
	return e.SentStatus == SentStatusSent
}

// EmailWithRecipient joins an email with the attendee it addresses.
type EmailWithRecipient struct {
	GeneratedEmail
	AttendeeName  string    `json:"attendee_name"`
	AttendeeEmail string    `json:"attendee_email"`
	WebinarID     uuid.UUID `json:"webinar_id"`
}
