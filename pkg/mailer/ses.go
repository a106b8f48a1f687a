package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// SES sends through Amazon SES v2.
type SES struct {
	client *sesv2.Client
	logger *zap.Logger
}

// NewSES creates an SES channel.
func NewSES(ctx context.Context, cfg Config, logger *zap.Logger) (*SES, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SES{client: sesv2.NewFromConfig(awsCfg), logger: logger}, nil
}

// Send implements Channel.
func (s *SES) Send(ctx context.Context, msg Message) (string, error) {
	result, err := s.client.SendEmail(ctx, sesInput(msg))
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	s.logger.Info("email sent", zap.String("provider", ProviderSES), zap.String("message_id", messageID))
	return messageID, nil
}

func sesInput(msg Message) *sesv2.SendEmailInput {
	content := &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")}
	body := &types.Body{Text: content}
	if msg.HTML {
		body = &types.Body{Html: content}
	}
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.from()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
}
