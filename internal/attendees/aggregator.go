// Package attendees joins attendance and chat rows into scored attendee
// records and serves them over HTTP.
package attendees

import (
	"strings"

	"github.com/webinarwins/backend/internal/csvimport"
	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/internal/scoring"
)

var interrogatives = map[string]struct{}{
	"how": {}, "what": {}, "when": {}, "where": {}, "why": {}, "who": {}, "can": {},
	"could": {}, "would": {}, "should": {}, "is": {}, "are": {}, "do": {}, "does": {},
}

// IsQuestion reports whether a chat message reads as a question: it contains
// a question mark or opens with an interrogative word.
func IsQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	_, ok := interrogatives[strings.ToLower(fields[0])]
	return ok
}

// Aggregated is an attendee ready for persistence with its chat messages.
type Aggregated struct {
	Attendee models.Attendee
	Messages []models.ChatMessage
}

// Stats summarizes one aggregation run.
type Stats struct {
	TotalRegistrants  int            `json:"total_registrants"`
	TotalAttended     int            `json:"total_attended"`
	TotalMessages     int            `json:"total_messages"`
	TierCounts        map[string]int `json:"tier_counts"`
	DuplicateEmails   int            `json:"duplicate_emails"`
	MissingEmailRows  int            `json:"missing_email_rows"`
	UnmatchedMessages int            `json:"unmatched_messages"`
}

// Aggregate joins attendance rows to chat rows by normalized email and scores
// every attendee. When an email repeats, the last row wins but keeps the
// position of its first appearance. Chat rows for unknown emails are dropped
// and counted.
func Aggregate(attendance []csvimport.AttendeeRow, chat []csvimport.ChatRow) ([]Aggregated, Stats) {
	stats := Stats{TierCounts: make(map[string]int, models.NumTiers)}
	for _, tier := range models.Tiers() {
		stats.TierCounts[tier.String()] = 0
	}

	order := make([]string, 0, len(attendance))
	byEmail := make(map[string]csvimport.AttendeeRow, len(attendance))
	for _, row := range attendance {
		email := csvimport.NormalizeEmail(row.Email)
		if email == "" {
			stats.MissingEmailRows++
			continue
		}
		if _, seen := byEmail[email]; seen {
			stats.DuplicateEmails++
		} else {
			order = append(order, email)
		}
		byEmail[email] = row
	}

	messages := make(map[string][]models.ChatMessage, len(order))
	for _, row := range chat {
		email := csvimport.NormalizeEmail(row.Email)
		if _, ok := byEmail[email]; !ok {
			stats.UnmatchedMessages++
			continue
		}
		messages[email] = append(messages[email], models.ChatMessage{
			Text:       row.Message,
			Timestamp:  row.Timestamp,
			IsQuestion: row.IsQuestion || IsQuestion(row.Message),
		})
	}

	out := make([]Aggregated, 0, len(order))
	for _, email := range order {
		row := byEmail[email]
		a := models.Attendee{
			Name:              row.Name,
			Email:             email,
			Attended:          row.Attended,
			AttendancePercent: row.AttendancePercent,
			FocusPercent:      row.FocusPercent,
			AttendanceMinutes: row.AttendanceMinutes,
			JoinTime:          row.JoinTime,
			ExitTime:          row.ExitTime,
			Location:          row.Location,
		}
		msgs := messages[email]
		ApplyScore(&a, msgs)

		stats.TotalRegistrants++
		if a.Attended {
			stats.TotalAttended++
		}
		stats.TotalMessages += len(msgs)
		stats.TierCounts[a.EngagementTier.String()]++
		out = append(out, Aggregated{Attendee: a, Messages: msgs})
	}
	return out, stats
}

// ApplyScore recounts messages and questions and sets score and tier on a.
func ApplyScore(a *models.Attendee, msgs []models.ChatMessage) {
	questions := 0
	for _, m := range msgs {
		if m.IsQuestion {
			questions++
		}
	}
	a.MessageCount = len(msgs)
	a.QuestionCount = questions
	res := scoring.Score(scoring.Input{
		FocusPercent:      a.FocusPercent,
		AttendancePercent: a.AttendancePercent,
		MessageCount:      a.MessageCount,
		QuestionCount:     a.QuestionCount,
		Attended:          a.Attended,
	})
	a.EngagementScore = res.Score
	a.EngagementTier = res.Tier
}
