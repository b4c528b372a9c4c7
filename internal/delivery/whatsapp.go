package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ignite/guestcomms/internal/config"
	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/httpretry"
	"github.com/ignite/guestcomms/internal/pkg/logger"
)

// WhatsAppTransport sends text messages through the WhatsApp Cloud API.
type WhatsAppTransport struct {
	client   httpretry.HTTPDoer
	endpoint string
	token    string
}

// NewWhatsAppTransport creates a WhatsApp transport. A nil client gets a
// retrying client bounded by cfg's timeout.
func NewWhatsAppTransport(cfg config.WhatsAppConfig, client httpretry.HTTPDoer) *WhatsAppTransport {
	if client == nil {
		client = httpretry.New(nil, httpretry.Options{MaxRetries: cfg.MaxRetries, Timeout: cfg.Timeout()})
	}
	return &WhatsAppTransport{
		client:   client,
		endpoint: fmt.Sprintf("%s/%s/%s/messages", trimBase(cfg.BaseURL), cfg.APIVersion, cfg.PhoneNumberID),
		token:    cfg.AccessToken,
	}
}

func (w *WhatsAppTransport) Channel() domain.Channel { return domain.ChannelWhatsApp }

type whatsAppText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type whatsAppRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (w *WhatsAppTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	payload, err := json.Marshal(whatsAppRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               strings.TrimPrefix(NormalizePhone(msg.Recipient.Phone), "+"),
		Type:             "text",
		Text:             whatsAppText{PreviewURL: true, Body: msg.Body},
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("whatsapp: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Receipt{}, fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("whatsapp: %w", err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return Receipt{}, fmt.Errorf("whatsapp: read response: %w", err)
	}
	var out whatsAppResponse
	_ = json.Unmarshal(data, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		pe := &ProviderError{Provider: "whatsapp", StatusCode: resp.StatusCode}
		if out.Error != nil {
			pe.Message = out.Error.Message
		}
		logger.Warn("whatsapp send rejected", "phone", msg.Recipient.Phone, "status", resp.StatusCode)
		return Receipt{}, pe
	}

	var id string
	if len(out.Messages) > 0 {
		id = out.Messages[0].ID
	}
	logger.Info("whatsapp sent", "phone", msg.Recipient.Phone, "message_id", msg.MessageID, "wamid", id)
	return Receipt{ProviderMessageID: id}, nil
}
