package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/rs/zerolog"
)

// Config holds the SES settings.
type Config struct {
	Region string
	Sender string
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SES sends workflow emails through Amazon SES.
type SES struct {
	client sesAPI
	sender string
	logger zerolog.Logger
}

// NewSES loads AWS credentials from the environment and builds the sender.
func NewSES(ctx context.Context, cfg Config, logger zerolog.Logger) (*SES, error) {
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, fmt.Errorf("ses sender address must be provided")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return newSES(ses.NewFromConfig(awsCfg), cfg.Sender, logger), nil
}

func newSES(client sesAPI, sender string, logger zerolog.Logger) *SES {
	return &SES{
		client: client,
		sender: sender,
		logger: logger.With().Str("component", "ses_mailer").Logger(),
	}
}

// Send delivers a plain-text message.
func (s *SES) Send(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("recipient address is empty")
	}

	output, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Debug().Str("message_id", aws.ToString(output.MessageId)).Msg("email accepted by ses")
	return nil
}
