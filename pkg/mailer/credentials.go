package mailer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// OAuthCredentials are the long-lived Gmail API credentials.
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (c OAuthCredentials) validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return fmt.Errorf("%w: set GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET and GMAIL_REFRESH_TOKEN", ErrNotConfigured)
	}
	return nil
}

// TokenProvider caches access tokens from an underlying source and refreshes
// them shortly before they expire. Each channel owns its own provider.
type TokenProvider struct {
	source oauth2.TokenSource
	early  time.Duration
	now    func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

// NewTokenProvider exchanges the refresh token for access tokens on demand.
func NewTokenProvider(ctx context.Context, creds OAuthCredentials) *TokenProvider {
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	return NewCachedTokenProvider(conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}), time.Minute)
}

// NewCachedTokenProvider wraps source. Tokens are refreshed once they are
// within early of expiry.
func NewCachedTokenProvider(source oauth2.TokenSource, early time.Duration) *TokenProvider {
	return &TokenProvider{source: source, early: early, now: time.Now}
}

// Token implements oauth2.TokenSource.
func (p *TokenProvider) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fresh() {
		return p.token, nil
	}
	tok, err := p.source.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh gmail token: %w", err)
	}
	p.token = tok
	return tok, nil
}

// Invalidate drops the cached token so the next call refreshes.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = nil
	p.mu.Unlock()
}

func (p *TokenProvider) fresh() bool {
	if p.token == nil || p.token.AccessToken == "" {
		return false
	}
	if p.token.Expiry.IsZero() {
		return true
	}
	return p.now().Add(p.early).Before(p.token.Expiry)
}
