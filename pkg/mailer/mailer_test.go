package mailer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type countingSource struct {
	calls  int
	expiry time.Time
	err    error
}

func (s *countingSource) Token() (*oauth2.Token, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &oauth2.Token{AccessToken: "tok", Expiry: s.expiry}, nil
}

func TestTokenProviderCachesUntilNearExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{expiry: now.Add(10 * time.Minute)}
	p := NewCachedTokenProvider(src, time.Minute)
	p.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		tok, err := p.Token()
		require.NoError(t, err)
		assert.Equal(t, "tok", tok.AccessToken)
	}
	assert.Equal(t, 1, src.calls)

	now = now.Add(9*time.Minute + 30*time.Second)
	_, err := p.Token()
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "refreshes inside the early window")

	p.Invalidate()
	_, err = p.Token()
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestTokenProviderSurfacesRefreshErrors(t *testing.T) {
	p := NewCachedTokenProvider(&countingSource{err: errors.New("invalid_grant")}, time.Minute)
	_, err := p.Token()
	assert.ErrorContains(t, err, "invalid_grant")
}

func TestGmailDropsCachedTokenOnUnauthorized(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	}))
	defer srv.Close()

	src := &countingSource{expiry: time.Now().Add(time.Hour)}
	provider := NewCachedTokenProvider(src, time.Minute)
	g, err := NewGmail(context.Background(), provider, zap.NewNop(), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	_, err = g.Send(context.Background(), Message{To: "jo@x.com", FromEmail: "me@x.com", Subject: "Hi", Body: "Hello"})
	require.Error(t, err)
	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Code)
	require.NotEmpty(t, auth)
	assert.Equal(t, "Bearer tok", auth[0])

	calls := src.calls
	_, err = provider.Token()
	require.NoError(t, err)
	assert.Equal(t, calls+1, src.calls, "next token call refreshes")
}

func TestUnauthorized(t *testing.T) {
	assert.True(t, unauthorized(&googleapi.Error{Code: http.StatusUnauthorized}))
	assert.False(t, unauthorized(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, unauthorized(errors.New("boom")))
}

func TestNewFailsFastWithoutCredentials(t *testing.T) {
	ctx := context.Background()
	for _, cfg := range []Config{
		{Provider: "gmail", OAuth: OAuthCredentials{ClientID: "id"}},
		{Provider: "ses"},
		{Provider: "smtp"},
		{Provider: "pigeon"},
	} {
		_, err := New(ctx, cfg, nil)
		assert.True(t, errors.Is(err, ErrNotConfigured), "provider %s", cfg.Provider)
	}

	ch, err := New(ctx, Config{Provider: "smtp", SMTPHost: "mail.local"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SMTP{}, ch)
}

func TestBuildMIME(t *testing.T) {
	raw := string(buildMIME(Message{
		FromName: "Webinar Team", FromEmail: "team@x.com", To: "jo@x.com",
		Subject: "Café replay", Body: "line one\nline two", HTML: false,
	}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	assert.Contains(t, raw, "From: \"Webinar Team\" <team@x.com>\r\n")
	assert.Contains(t, raw, "To: jo@x.com\r\n")
	assert.Contains(t, raw, "Subject: =?utf-8?q?Caf=C3=A9_replay?=\r\n")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nline one\r\nline two"))
}

func TestSESInput(t *testing.T) {
	in := sesInput(Message{FromName: "T", FromEmail: "t@x.com", To: "jo@x.com", Subject: "S", Body: "<p>B</p>", HTML: true})
	assert.Equal(t, []string{"jo@x.com"}, in.Destination.ToAddresses)
	require.NotNil(t, in.Content.Simple.Body.Html)
	assert.Nil(t, in.Content.Simple.Body.Text)
	assert.Equal(t, "<p>B</p>", *in.Content.Simple.Body.Html.Data)
	assert.Equal(t, `"T" <t@x.com>`, *in.FromEmailAddress)
}

func TestSMTPSend(t *testing.T) {
	s := NewSMTP("mail.local", 0, "user", "pass", zap.NewNop())
	assert.Equal(t, "mail.local:587", s.addr)

	var gotTo []string
	var gotMsg []byte
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "team@x.com", from)
		assert.NotNil(t, a)
		gotTo, gotMsg = to, msg
		return nil
	}
	id, err := s.Send(context.Background(), Message{FromEmail: "team@x.com", To: "jo@x.com", Subject: "Hi", Body: "Body"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"jo@x.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Hi")

	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay denied") }
	_, err = s.Send(context.Background(), Message{To: "jo@x.com"})
	assert.ErrorContains(t, err, "relay denied")
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML("<p>Hello</p>"))
	assert.True(t, LooksLikeHTML("Hi<br/>there"))
	assert.False(t, LooksLikeHTML("Hi there, 3 < 4"))
}
