package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SMTP sends through a plain-auth SMTP relay.
type SMTP struct {
	addr     string
	host     string
	user     string
	pass     string
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger   *zap.Logger
}

// NewSMTP creates an SMTP channel.
func NewSMTP(host string, port int, user, pass string, logger *zap.Logger) *SMTP {
	if port == 0 {
		port = 587
	}
	return &SMTP{
		addr:     fmt.Sprintf("%s:%d", host, port),
		host:     host,
		user:     user,
		pass:     pass,
		sendMail: smtp.SendMail,
		logger:   logger,
	}
}

// Send implements Channel. SMTP has no provider id, so one is generated.
func (s *SMTP) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}
	if err := s.sendMail(s.addr, auth, msg.FromEmail, []string{msg.To}, buildMIME(msg, time.Now())); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	id := uuid.NewString()
	s.logger.Info("email sent", zap.String("provider", ProviderSMTP), zap.String("message_id", id))
	return id, nil
}
