package emails

import (
	"errors"
	"strconv"
	"strings"
)

// ErrUnparseable is returned when generated text has no subject or no body.
var ErrUnparseable = errors.New("generated text missing subject or body")

const (
	subjectMarker      = "subject:"
	probabilityMarker  = "selected version probability"
	defaultProbability = 50
)

// Draft is a subject/body pair extracted from generated text.
type Draft struct {
	Subject     string
	Body        string
	Probability int
}

// ParseDraft extracts the email from generated text. A "Subject:" line starts
// the body, "---" lines are skipped and the probability line ends it. When
// the text contains several subject lines the last one wins.
func ParseDraft(text string) (*Draft, error) {
	d := &Draft{Probability: defaultProbability}
	var body []string
	inBody := false

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		bare := stripMarkdown(line)
		plain := strings.ToLower(bare)

		if strings.HasPrefix(strings.ReplaceAll(plain, "_", ""), subjectMarker) {
			i := strings.IndexByte(bare, ':')
			d.Subject = strings.TrimSpace(strings.Trim(bare[i+1:], "_ \t"))
			body = body[:0]
			inBody = true
			continue
		}
		if strings.Contains(plain, probabilityMarker) {
			d.Probability = parseProbability(line)
			break
		}
		if inBody && line != "" && !strings.HasPrefix(line, "---") {
			body = append(body, line)
		}
	}

	d.Body = strings.TrimSpace(strings.Join(body, "\n\n"))
	if d.Subject == "" || d.Body == "" {
		return nil, ErrUnparseable
	}
	return d, nil
}

var emphasis = strings.NewReplacer("**", "", "__", "", "*", "")

// stripMarkdown removes emphasis anywhere in a line and heading or quote
// markers around it.
func stripMarkdown(s string) string {
	s = emphasis.Replace(s)
	return strings.TrimSpace(strings.Trim(s, "#_> \t"))
}

func parseProbability(line string) int {
	i := strings.LastIndexByte(line, ':')
	if i < 0 {
		return defaultProbability
	}
	v := strings.Trim(line[i+1:], " \t*%_[]")
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 100 {
		return defaultProbability
	}
	return n
}
