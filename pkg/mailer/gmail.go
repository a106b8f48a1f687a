package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Gmail sends as the authorized user through the Gmail API.
type Gmail struct {
	service *gmail.Service
	tokens  interface{ Invalidate() }
	logger  *zap.Logger
}

// NewGmail creates a Gmail channel using tokens from ts. When ts is a
// *TokenProvider its cached token is dropped after a 401 so the next send
// refreshes.
func NewGmail(ctx context.Context, ts oauth2.TokenSource, logger *zap.Logger, opts ...option.ClientOption) (*Gmail, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	g := &Gmail{service: service, logger: logger}
	if p, ok := ts.(*TokenProvider); ok {
		g.tokens = p
	}
	return g, nil
}

// Send implements Channel.
func (g *Gmail) Send(ctx context.Context, msg Message) (string, error) {
	raw := base64.URLEncoding.EncodeToString(buildMIME(msg, time.Now()))
	sent, err := g.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		if unauthorized(err) && g.tokens != nil {
			g.tokens.Invalidate()
			g.logger.Warn("gmail rejected access token; cached token dropped")
		}
		return "", fmt.Errorf("gmail send: %w", err)
	}
	g.logger.Info("email sent", zap.String("provider", ProviderGmail), zap.String("message_id", sent.Id))
	return sent.Id, nil
}

func unauthorized(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized
}
