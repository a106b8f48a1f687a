// Package oracle wraps hosted text-generation models behind one interface.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Providers.
const (
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// ErrNotConfigured is returned when no usable provider credentials exist.
var ErrNotConfigured = errors.New("text generation oracle not configured")

// Request is one generation call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the generated text with usage accounting.
type Response struct {
	Text       string
	TokensUsed int
	Model      string
}

// Oracle generates free text from a system directive and a user prompt.
type Oracle interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, req Request) (*Response, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (*Response, error) { return f(ctx, req) }

// Config selects and configures a provider.
type Config struct {
	Provider string
	Model    string

	// Gemini
	APIKey string

	// Bedrock
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// New builds the configured provider. Missing credentials fail here, before
// any generation is attempted.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Oracle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: set GEMINI_API_KEY or AI_PROVIDER=bedrock", ErrNotConfigured)
		}
		return NewGemini(ctx, cfg.APIKey, cfg.Model, logger)
	case ProviderBedrock:
		if cfg.Region == "" {
			return nil, fmt.Errorf("%w: set AWS_REGION for bedrock", ErrNotConfigured)
		}
		return NewBedrock(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown AI_PROVIDER %q (want gemini or bedrock)", ErrNotConfigured, cfg.Provider)
	}
}
