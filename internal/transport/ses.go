package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// sesPermanentCodes are SES and AWS auth error codes that retrying cannot fix.
var sesPermanentCodes = map[string]bool{
	"MessageRejected":                    true, // unverified or mismatched sender
	"MailFromDomainNotVerifiedException": true,
	"InvalidClientTokenId":               true,
	"UnrecognizedClientException":        true,
	"SignatureDoesNotMatch":              true,
	"IncompleteSignature":                true,
	"MissingAuthenticationToken":         true,
}

// SESClient is the subset of the SES v2 client used for sending.
type SESClient interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig configures the SES transport.
type SESConfig struct {
	Region           string
	AccessKey        string
	SecretKey        string
	ConfigurationSet string
}

// SES sends through Amazon SES v2.
type SES struct {
	client    SESClient
	configSet string
	log       *logger.Logger
}

// NewSES builds an SES transport. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain.
func NewSES(ctx context.Context, cfg SESConfig) (*SES, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESWithClient(sesv2.NewFromConfig(awsCfg), cfg.ConfigurationSet), nil
}

// NewSESWithClient wraps an existing client.
func NewSESWithClient(client SESClient, configSet string) *SES {
	return &SES{client: client, configSet: configSet, log: logger.Named("transport.SES")}
}

// Send delivers one message.
func (s *SES) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	from := msg.FromEmail
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("campaign_id"), Value: aws.String(msg.CampaignID)},
			{Name: aws.String("queue_item_id"), Value: aws.String(msg.QueueItemID)},
		},
	}
	if s.configSet != "" {
		input.ConfigurationSetName = aws.String(s.configSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return nil, classifySES(err)
	}

	res := &domain.SendResult{Transport: domain.TransportSES, SentAt: time.Now().UTC()}
	if out.MessageId != nil {
		res.MessageID = *out.MessageId
	}
	s.log.Debug("sent", "recipient", msg.To, "message_id", res.MessageID)
	return res, nil
}

func classifySES(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && sesPermanentCodes[apiErr.ErrorCode()] {
		return Permanent(apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("ses send: %w", err)
}
