package emails

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/webinarwins/backend/internal/models"
)

var exportHeader = []string{
	"Name", "Email", "Engagement Tier", "Engagement Score", "Subject", "Body", "Sent Status", "Sent At",
}

// WriteCSV writes generated emails with their recipients.
func WriteCSV(w io.Writer, list []models.EmailWithRecipient) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, e := range list {
		sentAt := ""
		if e.SentAt != nil {
			sentAt = e.SentAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			e.AttendeeName,
			e.AttendeeEmail,
			e.EngagementTier.String(),
			strconv.Itoa(e.EngagementScore),
			e.Subject,
			e.Body,
			e.SentStatus,
			sentAt,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
