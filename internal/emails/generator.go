package emails

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/webinarwins/backend/config"
	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/pkg/oracle"
	"github.com/webinarwins/backend/pkg/retry"
	"github.com/webinarwins/backend/pkg/utils"
)

var (
	// ErrOracleNotConfigured is returned on the AI path when no oracle was built.
	ErrOracleNotConfigured = errors.New("email generation requires an AI provider: set AI_PROVIDER with GEMINI_API_KEY or AWS credentials")
	// ErrNoTemplate is returned when a template send is requested for a webinar without one.
	ErrNoTemplate = errors.New("webinar has no no-show template configured")
)

// GeneratorConfig tunes the AI path.
type GeneratorConfig struct {
	SenderName   string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	ChatExcerpts int
	Retry        retry.Policy
	Rules        Rules
}

// DefaultGeneratorConfig returns the production defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxTokens:    2000,
		Temperature:  0.8,
		Timeout:      30 * time.Second,
		ChatExcerpts: 10,
		Retry:        retry.Default,
		Rules:        DefaultRules,
	}
}

// GeneratorConfigFrom maps the AI settings onto a generator configuration.
func GeneratorConfigFrom(ai config.AIConfig, senderName string) GeneratorConfig {
	cfg := DefaultGeneratorConfig()
	cfg.SenderName = senderName
	if ai.MaxTokens > 0 {
		cfg.MaxTokens = ai.MaxTokens
	}
	cfg.Temperature = ai.Temperature
	if ai.TimeoutSec > 0 {
		cfg.Timeout = ai.Timeout()
	}
	if ai.ChatExcerpts > 0 {
		cfg.ChatExcerpts = ai.ChatExcerpts
	}
	if ai.MaxAttempts > 0 {
		cfg.Retry.MaxAttempts = ai.MaxAttempts
	}
	if ai.RetryBaseSec > 0 {
		cfg.Retry.BaseDelay = time.Duration(ai.RetryBaseSec) * time.Second
	}
	if ai.MaxBodyWords > 0 {
		cfg.Rules.MaxWords = ai.MaxBodyWords
	}
	return cfg
}

// Generator produces the email content for one attendee. It does not persist.
type Generator struct {
	oracle oracle.Oracle
	cfg    GeneratorConfig
	logger *zap.Logger
}

// NewGenerator creates a generator. A nil oracle leaves only the template path usable.
func NewGenerator(o oracle.Oracle, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Rules == (Rules{}) {
		cfg.Rules = DefaultRules
	}
	return &Generator{oracle: o, cfg: cfg, logger: logger}
}

// UsesTemplate reports whether the attendee takes the template path.
func UsesTemplate(a *models.Attendee, w *models.Webinar) bool {
	return a.EngagementTier == models.TierNoShow && w.HasNoShowTemplate()
}

// Ready reports ErrOracleNotConfigured when any of list would need the
// oracle and none is configured.
func (g *Generator) Ready(list []models.Attendee, w *models.Webinar) error {
	if g.oracle != nil {
		return nil
	}
	for i := range list {
		if !UsesTemplate(&list[i], w) {
			return ErrOracleNotConfigured
		}
	}
	return nil
}

// Generate builds the email for a. No-shows of a webinar with a template get
// the rendered template; everyone else goes through the oracle.
func (g *Generator) Generate(ctx context.Context, a *models.Attendee, w *models.Webinar, msgs []models.ChatMessage) (*models.GeneratedEmail, error) {
	if UsesTemplate(a, w) {
		return FromTemplate(a, w, models.GenerationMethodTemplate), nil
	}
	return g.generateAI(ctx, a, w, msgs)
}

// FromTemplate renders the webinar's no-show template for a.
func FromTemplate(a *models.Attendee, w *models.Webinar, method string) *models.GeneratedEmail {
	subject, body := RenderTemplate(w.NoShowTemplate, a, w)
	return &models.GeneratedEmail{
		AttendeeID:      a.ID,
		Subject:         subject,
		Body:            body,
		EngagementScore: a.EngagementScore,
		EngagementTier:  a.EngagementTier,
		Metadata: models.EmailMetadata{
			GenerationMethod: method,
			MessageCount:     a.MessageCount,
			QuestionCount:    a.QuestionCount,
		},
	}
}

func (g *Generator) generateAI(ctx context.Context, a *models.Attendee, w *models.Webinar, msgs []models.ChatMessage) (*models.GeneratedEmail, error) {
	if g.oracle == nil {
		return nil, ErrOracleNotConfigured
	}
	req := oracle.Request{
		System:      systemPrompt,
		Prompt:      BuildPrompt(a, w, msgs, g.cfg.ChatExcerpts),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}

	var (
		draft *Draft
		resp  *oracle.Response
	)
	attempts, err := retry.Do(ctx, g.cfg.Retry, func(ctx context.Context, attempt int) error {
		callCtx := ctx
		if g.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()
		}
		r, err := g.oracle.Generate(callCtx, req)
		if err != nil {
			g.logger.Warn("oracle call failed",
				zap.String("attendee", utils.RedactEmail(a.Email)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		d, err := ParseDraft(r.Text)
		if err != nil {
			return err
		}
		d.Subject = Sanitize(d.Subject, a.Name, g.cfg.SenderName)
		d.Body = Sanitize(d.Body, a.Name, g.cfg.SenderName)
		if err := g.cfg.Rules.Check(d.Subject, d.Body); err != nil {
			return retry.Permanent(err)
		}
		draft, resp = d, r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("after %d attempt(s): %w", attempts, err)
	}

	return &models.GeneratedEmail{
		AttendeeID:      a.ID,
		Subject:         draft.Subject,
		Body:            draft.Body,
		EngagementScore: a.EngagementScore,
		EngagementTier:  a.EngagementTier,
		Metadata: models.EmailMetadata{
			GenerationMethod: models.GenerationMethodAI,
			MessageCount:     a.MessageCount,
			QuestionCount:    a.QuestionCount,
			ChatReferences:   ChatReferences(msgs, g.cfg.ChatExcerpts),
			Model:            resp.Model,
			TokensUsed:       resp.TokensUsed,
			Temperature:      g.cfg.Temperature,
			MaxTokens:        g.cfg.MaxTokens,
			Probability:      draft.Probability,
			Attempts:         attempts,
		},
	}, nil
}
