package emails

import (
	"regexp"
	"strings"
)

// Bracketed tokens models leave behind, grouped by what replaces them.
var (
	senderTokens   = []string{"[Your Name]", "[Sender Name]", "[Sender]", "[Your Full Name]"}
	attendeeTokens = []string{"[Name]", "[First Name]", "[Attendee Name]", "[Recipient Name]"}
	strippedTokens = []string{"[Insert Details]", "[Details]", "[Email]", "[Company]", "[Your Company]", "[Link]"}
)

var (
	insertPattern = regexp.MustCompile(`(?i)\[insert[^\]]*\]`)
	spacePattern  = regexp.MustCompile(`[ \t]{2,}`)
)

// Sanitize substitutes or removes placeholder tokens, case-insensitively.
func Sanitize(s, attendeeName, senderName string) string {
	s = replaceTokens(s, senderTokens, senderName)
	s = replaceTokens(s, attendeeTokens, attendeeName)
	s = replaceTokens(s, strippedTokens, "")
	s = insertPattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func replaceTokens(s string, tokens []string, with string) string {
	for _, tok := range tokens {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(tok))
		s = re.ReplaceAllLiteralString(s, with)
	}
	return s
}
