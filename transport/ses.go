package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"
)

const (
	sesMaxRetries     = 3
	sesBaseRetryDelay = time.Duration(1) * time.Second
)

// SendEmailAPI is the part of the SES v2 client we use. Tests substitute
// their own.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds what we need to build an SES client. Credentials are
// optional: without them the default AWS credential chain applies.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SES submits raw messages through the AWS SES v2 API. The message is sent
// as-is, so encrypted messages keep their RFC 3156 structure.
type SES struct {
	client     SendEmailAPI
	retryDelay time.Duration
}

// NewSES loads the AWS configuration for cfg.Region and returns an SES
// transport.
func NewSES(ctx context.Context, cfg SESConfig) (*SES, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("can't load the AWS config: %w", err)
	}

	return NewSESWithClient(sesv2.NewFromConfig(awsCfg)), nil
}

// NewSESWithClient wraps an existing client.
func NewSESWithClient(c SendEmailAPI) *SES {
	return &SES{
		client:     c,
		retryDelay: sesBaseRetryDelay,
	}
}

// Name implements Sender.
func (s *SES) Name() string {
	return "ses"
}

// Send implements Sender. Failed API calls are retried with exponential
// backoff.
func (s *SES) Send(ctx context.Context, from string, to []string, msg []byte) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: to,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{
				Data: msg,
			},
		},
	}

	var lastErr error
	delay := s.retryDelay
	for attempt := 0; attempt <= sesMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("gave up retrying SES: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		out, err := s.client.SendEmail(ctx, input)
		if err == nil {
			log.Debug().
				Str("messageId", aws.ToString(out.MessageId)).
				Msg("SES accepted the message")
			return nil
		}
		lastErr = err
		log.Warn().
			Int("attempt", attempt).
			Err(err).
			Msg("SES API error")
	}

	return fmt.Errorf("SES request failed after %d retries: %w", sesMaxRetries, lastErr)
}
