package delivery

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/ignite/guestcomms/internal/config"
	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/logger"
)

// SESAPI is the subset of the SES v2 client used by SESTransport.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport sends email through AWS SES v2.
type SESTransport struct {
	client           SESAPI
	from             string
	replyTo          string
	configurationSet string
	timeout          time.Duration
}

// NewSESTransport builds an SES client from cfg. Static credentials are used
// when both keys are set; otherwise the default AWS credential chain applies.
func NewSESTransport(ctx context.Context, cfg config.SESConfig) (*SESTransport, error) {
	if cfg.FromEmail == "" {
		return nil, errors.New("ses: from_email is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}
	return NewSESTransportWithClient(sesv2.NewFromConfig(awsCfg), cfg), nil
}

// NewSESTransportWithClient wraps an existing SES client.
func NewSESTransportWithClient(client SESAPI, cfg config.SESConfig) *SESTransport {
	from := formatAddress(cfg.FromName, cfg.FromEmail)
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SESTransport{
		client:           client,
		from:             from,
		replyTo:          cfg.ReplyTo,
		configurationSet: cfg.ConfigurationSet,
		timeout:          timeout,
	}
}

// formatAddress renders an RFC 5322 mailbox. Display names are quoted, and
// encoded per RFC 2047 when they contain non-ASCII characters.
func formatAddress(name, email string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return email
	}
	return (&mail.Address{Name: name, Address: email}).String()
}

func (s *SESTransport) Channel() domain.Channel { return domain.ChannelEmail }

// Send delivers one email. The body is sent as plain text plus a minimal
// HTML rendition with line breaks preserved.
func (s *SESTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	to := formatAddress(msg.Recipient.Name, msg.Recipient.Email)

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
					Html: &types.Content{Data: aws.String(textToHTML(msg.Body)), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	var tags []types.MessageTag
	if msg.MessageID != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("message_id"), Value: aws.String(msg.MessageID)})
	}
	if msg.AccountID != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("account_id"), Value: aws.String(msg.AccountID)})
	}
	input.EmailTags = tags
	if s.replyTo != "" {
		input.ReplyToAddresses = []string{s.replyTo}
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		logger.Warn("ses send failed", "email", msg.Recipient.Email, "message_id", msg.MessageID, "error", err)
		return Receipt{}, fmt.Errorf("ses send: %w", err)
	}

	id := aws.ToString(out.MessageId)
	logger.Info("ses sent", "email", msg.Recipient.Email, "message_id", msg.MessageID, "ses_id", id)
	return Receipt{ProviderMessageID: id}, nil
}

func textToHTML(body string) string {
	escaped := html.EscapeString(body)
	return "<html><body><p>" + strings.ReplaceAll(escaped, "\n", "<br>\n") + "</p></body></html>"
}
