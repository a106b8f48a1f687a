package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini calls the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGemini creates a Gemini-backed oracle.
func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

// Generate implements Oracle.
func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), geminiConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text := result.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini generate: empty response")
	}
	resp := &Response{Text: text, Model: g.model}
	if result.UsageMetadata != nil {
		resp.TokensUsed = int(result.UsageMetadata.TotalTokenCount)
	}
	g.logger.Debug("gemini generation", zap.String("model", g.model), zap.Int("tokens", resp.TokensUsed))
	return resp, nil
}

func geminiConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return cfg
}
