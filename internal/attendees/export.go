package attendees

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/webinarwins/backend/internal/models"
)

var exportHeader = []string{
	"Name", "Email", "Attended", "Attendance %", "Focus %", "Attendance Minutes",
	"Messages", "Questions", "Engagement Score", "Engagement Tier",
}

// WriteCSV writes attendees in the column layout users re-import elsewhere.
func WriteCSV(w io.Writer, list []models.Attendee) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, a := range list {
		attended := "No"
		if a.Attended {
			attended = "Yes"
		}
		record := []string{
			a.Name,
			a.Email,
			attended,
			strconv.FormatFloat(a.AttendancePercent, 'f', -1, 64),
			strconv.FormatFloat(a.FocusPercent, 'f', -1, 64),
			strconv.Itoa(a.AttendanceMinutes),
			strconv.Itoa(a.MessageCount),
			strconv.Itoa(a.QuestionCount),
			strconv.Itoa(a.EngagementScore),
			a.EngagementTier.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
