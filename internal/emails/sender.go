package emails

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/pkg/mailer"
	"github.com/webinarwins/backend/pkg/utils"
	"github.com/webinarwins/backend/pkg/workpool"
)

var (
	// ErrAlreadySent rejects a second real send of the same email.
	ErrAlreadySent = errors.New("email already sent")
	// ErrChannelNotConfigured is returned when no delivery channel was built.
	ErrChannelNotConfigured = errors.New("email delivery requires EMAIL_PROVIDER credentials (SES region, Gmail OAuth or SMTP_HOST)")
)

// SenderIdentity is the From header of outbound mail.
type SenderIdentity struct {
	FromName  string
	FromEmail string
}

// SendOverride replaces recipient or content for a test send. Any non-empty
// field makes the send a test send, which never marks the email sent.
type SendOverride struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (o *SendOverride) active() bool {
	return o != nil && (o.To != "" || o.Subject != "" || o.Body != "")
}

// SendResult reports one delivery.
type SendResult struct {
	MessageID string     `json:"message_id"`
	To        string     `json:"to"`
	TestSend  bool       `json:"test_send"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// BulkSendReport is the outcome of a template bulk send.
type BulkSendReport struct {
	Total   int      `json:"total"`
	Sent    int      `json:"sent"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
	Message string   `json:"message"`
}

// Sender delivers generated emails through a mail channel.
type Sender struct {
	store     Store
	attendees AttendeeSource
	channel   mailer.Channel
	identity  SenderIdentity
	width     int
	now       func() time.Time
	logger    *zap.Logger
}

// NewSender creates a sender. A nil channel makes every send fail with ErrChannelNotConfigured.
func NewSender(store Store, attendees AttendeeSource, channel mailer.Channel, identity SenderIdentity, width int, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{store: store, attendees: attendees, channel: channel, identity: identity, width: width, now: time.Now, logger: logger}
}

func (s *Sender) message(to, subject, body string) mailer.Message {
	return mailer.Message{
		FromName:  s.identity.FromName,
		FromEmail: s.identity.FromEmail,
		To:        to,
		Subject:   subject,
		Body:      body,
		HTML:      mailer.LooksLikeHTML(body),
	}
}

// Send delivers one email owned by userID. Real sends mark the email sent;
// test sends (any override field set) do not.
func (s *Sender) Send(ctx context.Context, userID, emailID uuid.UUID, override *SendOverride) (*SendResult, error) {
	if s.channel == nil {
		return nil, ErrChannelNotConfigured
	}
	e, err := s.store.GetForOwner(ctx, emailID, userID)
	if err != nil {
		return nil, err
	}
	test := override.active()
	if !test && e.IsSent() {
		return nil, ErrAlreadySent
	}

	to, subject, body := e.AttendeeEmail, e.Subject, e.Body
	if test {
		to = firstNonEmpty(override.To, to)
		subject = firstNonEmpty(override.Subject, subject)
		body = firstNonEmpty(override.Body, body)
	}

	id, err := s.channel.Send(ctx, s.message(to, subject, body))
	if err != nil {
		return nil, fmt.Errorf("deliver: %w", err)
	}
	res := &SendResult{MessageID: id, To: to, TestSend: test}
	if !test {
		now := s.now().UTC()
		if err := s.store.MarkSent(ctx, e.ID, now); err != nil {
			return nil, fmt.Errorf("mark sent: %w", err)
		}
		res.SentAt = &now
	}
	s.logger.Info("email sent",
		zap.String("email_id", e.ID.String()),
		zap.String("to", utils.RedactEmail(to)),
		zap.Bool("test_send", test),
	)
	return res, nil
}

// BulkSendNoShowTemplate renders the webinar's no-show template for every
// no-show, stores it and delivers it. No-shows already sent are skipped.
func (s *Sender) BulkSendNoShowTemplate(ctx context.Context, w *models.Webinar) (*BulkSendReport, error) {
	if !w.HasNoShowTemplate() {
		return nil, ErrNoTemplate
	}
	if s.channel == nil {
		return nil, ErrChannelNotConfigured
	}
	tier := models.TierNoShow
	list, err := s.attendees.ListByWebinar(ctx, w.ID, &tier)
	if err != nil {
		return nil, fmt.Errorf("list no-shows: %w", err)
	}
	sent, err := s.store.SentAttendees(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("list sent emails: %w", err)
	}

	report := &BulkSendReport{Total: len(list), Errors: []string{}}
	todo := make([]models.Attendee, 0, len(list))
	for _, a := range list {
		if sent[a.ID] {
			report.Skipped++
			continue
		}
		todo = append(todo, a)
	}

	outcomes := workpool.Run(ctx, s.width, len(todo), func(ctx context.Context, i int) (string, error) {
		a := &todo[i]
		e := FromTemplate(a, w, models.GenerationMethodTemplateBulk)
		if err := s.store.Upsert(ctx, e); err != nil {
			return "", fmt.Errorf("save: %w", err)
		}
		id, err := s.channel.Send(ctx, s.message(a.Email, e.Subject, e.Body))
		if err != nil {
			return "", fmt.Errorf("deliver: %w", err)
		}
		if err := s.store.MarkSent(ctx, e.ID, s.now().UTC()); err != nil {
			return id, fmt.Errorf("mark sent: %w", err)
		}
		return id, nil
	})
	for i, out := range outcomes {
		if out.Err != nil {
			report.Failed++
			if len(report.Errors) < MaxReportedErrors {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", todo[i].Email, out.Err))
			}
			continue
		}
		report.Sent++
	}
	report.Message = fmt.Sprintf("Sent %d emails, skipped %d, failed %d", report.Sent, report.Skipped, report.Failed)

	s.logger.Info("no-show template sent",
		zap.String("webinar_id", w.ID.String()),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
