package emails

import (
	"strconv"
	"strings"

	"github.com/webinarwins/backend/internal/models"
)

// TemplateVars returns the variables available to stored templates.
func TemplateVars(a *models.Attendee, w *models.Webinar) map[string]string {
	return map[string]string{
		"name":              a.Name,
		"topic":             w.Topic,
		"offer_name":        w.Offer.Name,
		"offer_description": w.Offer.Description,
		"price":             FormatPrice(w.Offer.Price),
		"deadline":          w.Offer.Deadline,
		"replay_url":        w.Offer.ReplayURL,
	}
}

// FormatPrice renders a price as "$497" or "$49.50"; nil renders empty.
func FormatPrice(p *float64) string {
	if p == nil {
		return ""
	}
	if *p == float64(int64(*p)) {
		return "$" + strconv.FormatInt(int64(*p), 10)
	}
	return "$" + strconv.FormatFloat(*p, 'f', 2, 64)
}

// Render replaces {var} placeholders with their values. Placeholders with no
// matching variable are left as written.
func Render(tmpl string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(tmpl))
	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			b.WriteString(tmpl)
			return b.String()
		}
		end := strings.IndexByte(tmpl[open+1:], '}')
		if end < 0 {
			b.WriteString(tmpl)
			return b.String()
		}
		key := tmpl[open+1 : open+1+end]
		if strings.ContainsRune(key, '{') {
			// "{{name}" keeps the first brace literal and retries from the second
			b.WriteString(tmpl[:open+1])
			tmpl = tmpl[open+1:]
			continue
		}
		b.WriteString(tmpl[:open])
		if v, ok := vars[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(tmpl[open : open+end+2])
		}
		tmpl = tmpl[open+end+2:]
	}
}

// RenderTemplate renders a stored template for one attendee.
func RenderTemplate(t *models.EmailTemplate, a *models.Attendee, w *models.Webinar) (subject, body string) {
	vars := TemplateVars(a, w)
	return Render(t.Subject, vars), Render(t.Body, vars)
}
