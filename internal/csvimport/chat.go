package csvimport

import (
	"errors"
	"io"
	"time"
)

var (
	messageAliases   = []string{"Message", "Chat Message", "Text", "Comment"}
	timestampAliases = []string{"Timestamp", "Time", "Sent At", "Date"}
	questionAliases  = []string{"Is Question", "is_question"}
)

// ChatRow is one canonical chat record.
type ChatRow struct {
	Name       string
	Email      string
	Message    string
	Timestamp  *time.Time // nil when absent or unparseable
	IsQuestion bool       // flagged by the export; the heuristic still applies
}

// ParseChat reads a chat transcript export. Rows missing an email or a
// message are skipped and counted in dropped.
func ParseChat(r io.Reader) (rows []ChatRow, dropped int, err error) {
	t, err := newTable(r)
	if err != nil {
		return nil, 0, err
	}
	emailIdx, err := t.require("email", emailAliases)
	if err != nil {
		return nil, 0, err
	}
	messageIdx, err := t.require("message", messageAliases)
	if err != nil {
		return nil, 0, err
	}
	nameIdx := t.find(nameAliases)
	tsIdx := t.find(timestampAliases)
	questionIdx := t.find(questionAliases)

	for {
		record, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		email := NormalizeEmail(getValue(record, emailIdx))
		message := getValue(record, messageIdx)
		if email == "" || message == "" {
			dropped++
			continue
		}
		rows = append(rows, ChatRow{
			Name:       getValue(record, nameIdx),
			Email:      email,
			Message:    message,
			Timestamp:  ParseTime(getValue(record, tsIdx)),
			IsQuestion: parseBool(getValue(record, questionIdx)),
		})
	}
	return rows, dropped, nil
}
