// Package mailer delivers single emails through SES, the Gmail API or SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Providers.
const (
	ProviderSES   = "ses"
	ProviderGmail = "gmail"
	ProviderSMTP  = "smtp"
)

// ErrNotConfigured is returned when the delivery channel lacks credentials.
var ErrNotConfigured = errors.New("email delivery channel not configured")

// Message is one outbound email.
type Message struct {
	FromName  string
	FromEmail string
	To        string
	Subject   string
	Body      string
	HTML      bool
}

// Channel delivers a message and returns the provider's message id.
type Channel interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string

	// SES
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// Gmail
	OAuth OAuthCredentials

	// SMTP
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
}

// New builds the configured channel, failing fast on missing credentials.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Channel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderSES:
		if cfg.Region == "" {
			return nil, fmt.Errorf("%w: set AWS_REGION for ses", ErrNotConfigured)
		}
		return NewSES(ctx, cfg, logger)
	case ProviderGmail:
		if err := cfg.OAuth.validate(); err != nil {
			return nil, err
		}
		return NewGmail(ctx, NewTokenProvider(ctx, cfg.OAuth), logger)
	case ProviderSMTP, "":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("%w: set SMTP_HOST or EMAIL_PROVIDER=ses|gmail", ErrNotConfigured)
		}
		return NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown EMAIL_PROVIDER %q (want ses, gmail or smtp)", ErrNotConfigured, cfg.Provider)
	}
}

// LooksLikeHTML is a cheap check for bodies that carry markup.
func LooksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	for _, tag := range []string{"<html", "<body", "<p>", "<p ", "<br", "<div", "<a href"} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

func (m Message) from() string {
	addr := mail.Address{Name: m.FromName, Address: m.FromEmail}
	return addr.String()
}

// buildMIME renders msg as an RFC 5322 message.
func buildMIME(msg Message, now time.Time) []byte {
	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", msg.from())
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return buf.Bytes()
}
