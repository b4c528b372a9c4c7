package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ignite/guestcomms/internal/config"
	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/logger"
)

// SQSAPI is the subset of the SQS client used by InAppTransport.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// InAppRecord is the queue payload the host application turns into an
// in-app notification.
type InAppRecord struct {
	MessageID string           `json:"message_id,omitempty"`
	AccountID string           `json:"account_id"`
	Recipient domain.Recipient `json:"recipient"`
	Subject   string           `json:"subject,omitempty"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
}

// InAppTransport publishes in-app messages to an SQS queue.
type InAppTransport struct {
	client   SQSAPI
	queueURL string
	timeout  time.Duration
}

// NewInAppTransport builds an SQS client for cfg's region using the default
// AWS credential chain.
func NewInAppTransport(ctx context.Context, cfg config.InAppConfig) (*InAppTransport, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("inapp: load aws config: %w", err)
	}
	return NewInAppTransportWithClient(sqs.NewFromConfig(awsCfg), cfg), nil
}

// NewInAppTransportWithClient wraps an existing SQS client.
func NewInAppTransportWithClient(client SQSAPI, cfg config.InAppConfig) *InAppTransport {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &InAppTransport{client: client, queueURL: cfg.QueueURL, timeout: timeout}
}

func (t *InAppTransport) Channel() domain.Channel { return domain.ChannelInApp }

func (t *InAppTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	body, err := json.Marshal(InAppRecord{
		MessageID: msg.MessageID,
		AccountID: msg.AccountID,
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Body:      msg.Body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("inapp: encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"account_id": {DataType: aws.String("String"), StringValue: aws.String(msg.AccountID)},
		},
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("inapp: publish: %w", err)
	}
	id := aws.ToString(out.MessageId)
	logger.Debug("inapp published", "message_id", msg.MessageID, "sqs_id", id)
	return Receipt{ProviderMessageID: id}, nil
}
