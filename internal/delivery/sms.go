package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/guestcomms/internal/config"
	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/httpretry"
	"github.com/ignite/guestcomms/internal/pkg/logger"
)

// SMSTransport sends text messages through a Twilio-compatible REST API:
// a form POST to /2010-04-01/Accounts/{sid}/Messages.json with basic auth.
type SMSTransport struct {
	client     httpretry.HTTPDoer
	endpoint   string
	accountSID string
	authToken  string
	from       string
}

// NewSMSTransport creates an SMS transport. A nil client gets a retrying
// client bounded by cfg's timeout.
func NewSMSTransport(cfg config.SMSConfig, client httpretry.HTTPDoer) *SMSTransport {
	if client == nil {
		client = httpretry.New(nil, httpretry.Options{MaxRetries: cfg.MaxRetries, Timeout: cfg.Timeout()})
	}
	return &SMSTransport{
		client:     client,
		endpoint:   fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", trimBase(cfg.BaseURL), url.PathEscape(cfg.AccountSID)),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
	}
}

func (s *SMSTransport) Channel() domain.Channel { return domain.ChannelSMS }

type smsResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *SMSTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	form := url.Values{}
	form.Set("To", NormalizePhone(msg.Recipient.Phone))
	form.Set("From", s.from)
	form.Set("Body", msg.Body)
	encoded := form.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(encoded))
	if err != nil {
		return Receipt{}, fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("sms: %w", err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return Receipt{}, fmt.Errorf("sms: read response: %w", err)
	}
	var out smsResponse
	_ = json.Unmarshal(data, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("sms send rejected", "phone", msg.Recipient.Phone, "status", resp.StatusCode, "code", out.Code)
		return Receipt{}, &ProviderError{Provider: "sms", StatusCode: resp.StatusCode, Message: out.Message}
	}

	logger.Info("sms sent", "phone", msg.Recipient.Phone, "message_id", msg.MessageID, "sid", out.SID)
	return Receipt{ProviderMessageID: out.SID}, nil
}
