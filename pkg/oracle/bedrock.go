package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

// DefaultBedrockModel is used when no model is configured.
const DefaultBedrockModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

type bedrockMessage struct {
	Role    string         `json:"role"`
	Content []bedrockBlock `json:"content"`
}

type bedrockBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature"`
}

type bedrockResponse struct {
	Content []bedrockBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Bedrock calls Anthropic models hosted on AWS Bedrock.
type Bedrock struct {
	client *bedrockruntime.Client
	model  string
	logger *zap.Logger
}

// NewBedrock creates a Bedrock-backed oracle. Static keys are used when set,
// otherwise the default AWS credential chain.
func NewBedrock(ctx context.Context, cfg Config, logger *zap.Logger) (*Bedrock, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultBedrockModel
	}
	return &Bedrock{client: bedrockruntime.NewFromConfig(awsCfg), model: model, logger: logger}, nil
}

// Generate implements Oracle.
func (b *Bedrock) Generate(ctx context.Context, req Request) (*Response, error) {
	body, err := encodeBedrockRequest(req)
	if err != nil {
		return nil, err
	}
	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke: %w", err)
	}
	resp, err := decodeBedrockResponse(output.Body)
	if err != nil {
		return nil, err
	}
	resp.Model = b.model
	b.logger.Debug("bedrock generation", zap.String("model", b.model), zap.Int("tokens", resp.TokensUsed))
	return resp, nil
}

func encodeBedrockRequest(req Request) ([]byte, error) {
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        req.MaxTokens,
		System:           req.System,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockBlock{{Type: "text", Text: req.Prompt}},
		}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal bedrock request: %w", err)
	}
	return body, nil
}

func decodeBedrockResponse(raw []byte) (*Response, error) {
	var parsed bedrockResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse bedrock response: %w", err)
	}
	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("bedrock response has no text content")
	}
	return &Response{
		Text:       sb.String(),
		TokensUsed: parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}, nil
}
