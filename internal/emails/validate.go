package emails

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrValidation is returned when generated content fails the quality gate.
var ErrValidation = errors.New("generated email failed validation")

var placeholderMarkers = []string{
	"[your name]", "[insert", "[name]", "[email]",
	"[company]", "[details]", "xxx", "placeholder",
}

// Rules bounds generated content.
type Rules struct {
	MinWords, MaxWords     int
	MinSubject, MaxSubject int
}

// DefaultRules matches the prompt's 500 word limit with some tolerance.
var DefaultRules = Rules{MinWords: 50, MaxWords: 550, MinSubject: 5, MaxSubject: 100}

// Check returns an ErrValidation-wrapped error describing the first violation.
func (r Rules) Check(subject, body string) error {
	content := strings.ToLower(subject + " " + body)
	for _, m := range placeholderMarkers {
		if strings.Contains(content, m) {
			return fmt.Errorf("%w: contains placeholder %q", ErrValidation, m)
		}
	}
	if n := len(strings.Fields(body)); n < r.MinWords || n > r.MaxWords {
		return fmt.Errorf("%w: body has %d words, want %d-%d", ErrValidation, n, r.MinWords, r.MaxWords)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(subject)); n < r.MinSubject || n > r.MaxSubject {
		return fmt.Errorf("%w: subject has %d characters, want %d-%d", ErrValidation, n, r.MinSubject, r.MaxSubject)
	}
	return nil
}
