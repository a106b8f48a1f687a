package emails

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/webinarwins/backend/internal/models"
)

const systemPrompt = `You are an expert email copywriter specializing in conversational, authentic follow-up emails for webinar attendees. Your writing style is:

Conversational and human. You write like you talk: relaxed, natural, sometimes irreverent, but always with heart.

Emotionally honest. You don't posture as the expert who has it all figured out. You share truth, lessons, and real moments, even the messy ones.

Story-driven and self-aware. You use personal examples, metaphors, and reflections that make complex ideas click.

Warm with an edge. You're unafraid to call out outdated "bro-marketing" nonsense, but you never attack people.

Invitational, not persuasive. You don't push or hype. You tell the truth and let resonance do the work.

Rhythmic and readable. Short lines. Natural breaks. Emphasis that feels like real conversation.

Refer to their webinar chat engagement ONLY where it makes sense. It should sound authentic and natural, not forced.

Your task is to generate 3 different email versions with varying phrasings, structures, and openings. For each version assign a probability rating (0-100) indicating how common or typical that response pattern is. Higher probability means a more generic pattern, lower probability a more distinctive one.

After generating all 3 versions, select the version with the LOWEST probability rating and return only that version as the final email.

IMPORTANT CONSTRAINTS:
- Maximum 500 words per email
- Subject line + body format
- Natural mention of fast action bonus (if applicable)
- No placeholder text like [Your Name] or [Insert Details]
- Make it sound human, not AI-generated`

// tierPolicy is the tone directive and profile shape for one tier.
type tierPolicy struct {
	label         string // "HOT LEAD"
	scoreNote     string // appended to the score line; empty omits engagement lines
	showChat      bool
	showQuestions bool
	tone          []string
}

var tierPolicies = [...]tierPolicy{
	models.TierHot: {
		label:         "HOT LEAD",
		scoreNote:     "TOP TIER",
		showChat:      true,
		showQuestions: true,
		tone: []string{
			"Write like you're talking to a friend, not selling to a prospect",
			"If they had chat activity, reference it naturally and authentically (only if it adds real value)",
			"Acknowledge their exceptional engagement without being overly effusive",
			"Share the opportunity with confident, honest excitement, not hype",
			"Mention the deadline as helpful context, not pressure",
		},
	},
	models.TierWarm: {
		label:         "WARM LEAD",
		scoreNote:     "strong engagement",
		showChat:      true,
		showQuestions: true,
		tone: []string{
			"Write like you're following up with someone you genuinely enjoyed meeting",
			"If they had chat activity, weave it in naturally (only if it adds real connection)",
			"Share the opportunity honestly, not as a pitch",
			"Invite them warmly, respecting their autonomy",
			"Address concerns with empathy and truth, not deflection",
		},
	},
	models.TierCool: {
		label:     "COOL LEAD",
		scoreNote: "moderate engagement",
		showChat:  true,
		tone: []string{
			"Write like you're checking in with someone who seemed interested but distracted",
			"Recap key insights without lecturing",
			"Offer the replay as a genuine resource, not a sales tactic",
			"Mention the offer as an option, not an agenda",
			"Keep it light, warm, and pressure-free",
		},
	},
	models.TierCold: {
		label:     "COLD LEAD",
		scoreNote: "limited engagement",
		tone: []string{
			"Write with complete non-judgment; multitasking happens",
			"Offer the replay with genuine helpfulness, not guilt",
			"Share highlights that actually matter",
			"Mention the opportunity super casually",
			"Zero pressure, zero hype",
		},
	},
	models.TierNoShow: {
		label: "NO-SHOW",
		tone: []string{
			"Write with total understanding: no guilt, no shame, life happens",
			"Create genuine curiosity about what they missed, not manufactured FOMO",
			"Offer the replay as something truly valuable, not a consolation prize",
			"Mention the bonus naturally, not as a hook",
			"Make them feel welcomed, not like they're behind",
		},
	},
}

// Adding a tier without a policy fails to compile here.
var _ = [1]struct{}{}[len(tierPolicies)-models.NumTiers]

func policyFor(t models.Tier) tierPolicy {
	if !t.Valid() {
		return tierPolicies[models.TierNoShow]
	}
	return tierPolicies[t]
}

// BuildPrompt renders the user prompt for one attendee. At most maxExcerpts
// chat messages are included.
func BuildPrompt(a *models.Attendee, w *models.Webinar, msgs []models.ChatMessage, maxExcerpts int) string {
	p := policyFor(a.EngagementTier)
	var b strings.Builder

	fmt.Fprintf(&b, "Generate a personalized follow-up email for a %s from our webinar.\n\n", p.label)
	b.WriteString("ATTENDEE PROFILE:\n")
	fmt.Fprintf(&b, "- Name: %s\n", a.Name)
	if p.scoreNote == "" {
		b.WriteString("- Status: Registered but didn't attend\n")
	} else {
		fmt.Fprintf(&b, "- Engagement Score: %d/100 (%s)\n", a.EngagementScore, p.scoreNote)
		fmt.Fprintf(&b, "- Focus: %s%%\n", formatPercent(a.FocusPercent))
		fmt.Fprintf(&b, "- Attendance: %s%% of webinar\n", formatPercent(a.AttendancePercent))
		if p.showQuestions {
			fmt.Fprintf(&b, "- Chat Messages: %d (including %d questions)\n", a.MessageCount, a.QuestionCount)
		} else {
			fmt.Fprintf(&b, "- Chat Messages: %d\n", a.MessageCount)
		}
	}
	if p.showChat && len(msgs) > 0 {
		b.WriteString("\nTheir chat activity:\n")
		b.WriteString(chatContext(msgs, maxExcerpts))
		b.WriteString("\n")
	}

	b.WriteString("\nWEBINAR & OFFER:\n")
	fmt.Fprintf(&b, "- Topic: %s\n", orDefault(w.Topic, "the webinar content"))
	fmt.Fprintf(&b, "- Offer: %s - %s\n", orDefault(w.Offer.Name, "our special offer"), w.Offer.Description)
	if price := FormatPrice(w.Offer.Price); price != "" {
		fmt.Fprintf(&b, "- Price: %s\n", price)
	}
	fmt.Fprintf(&b, "- Deadline: %s\n", orDefault(w.Offer.Deadline, "soon"))
	fmt.Fprintf(&b, "- Replay: %s\n", orDefault(w.Offer.ReplayURL, "available upon request"))

	b.WriteString("\nTONE & APPROACH:\n")
	for _, line := range p.tone {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	b.WriteString(`
Remember: Generate 3 versions with probability ratings, then select and return ONLY the lowest probability version.

Format:
Subject: [your subject line]

[email body - conversational, max 500 words]

---
SELECTED VERSION PROBABILITY: [X%]`)
	return b.String()
}

func chatContext(msgs []models.ChatMessage, limit int) string {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		prefix := "Comment"
		if m.IsQuestion {
			prefix = "Question"
		}
		lines = append(lines, prefix+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

// ChatReferences returns up to limit excerpts recorded in email metadata.
func ChatReferences(msgs []models.ChatMessage, limit int) []models.ChatReference {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	refs := make([]models.ChatReference, 0, len(msgs))
	for _, m := range msgs {
		refs = append(refs, models.ChatReference{Text: m.Text, IsQuestion: m.IsQuestion, Timestamp: m.Timestamp})
	}
	return refs
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
