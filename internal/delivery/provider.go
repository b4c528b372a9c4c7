package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/logger"
)

var (
	// ErrTransportNotConfigured is returned in live mode for a channel with
	// no registered transport.
	ErrTransportNotConfigured = errors.New("delivery transport not configured")

	// ErrInvalidRecipient is returned when the recipient has no usable
	// contact for the channel.
	ErrInvalidRecipient = errors.New("invalid recipient for channel")

	// ErrUnknownChannel is returned for a channel outside the supported set.
	ErrUnknownChannel = errors.New("unknown delivery channel")
)

// Mode selects how unconfigured channels behave.
type Mode string

const (
	ModeLive    Mode = "live"
	ModeSandbox Mode = "sandbox"
)

// ParseMode maps a config value to a Mode. Anything but "sandbox" is live.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeSandbox)) {
		return ModeSandbox
	}
	return ModeLive
}

// Message is a fully rendered message ready for a transport.
type Message struct {
	MessageID string // scheduled message id, empty for test sends
	AccountID string
	Channel   domain.Channel
	Recipient domain.Recipient
	Subject   string
	Body      string
}

// Receipt is what a transport reports back after accepting a message.
type Receipt struct {
	Channel           domain.Channel `json:"channel"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Sandbox           bool           `json:"sandbox,omitempty"`
}

// Transport sends messages over a single channel.
type Transport interface {
	Channel() domain.Channel
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Provider routes messages to the transport registered for their channel.
type Provider struct {
	mode       Mode
	mu         sync.RWMutex
	transports map[domain.Channel]Transport
}

// NewProvider creates a provider in the given mode with the given transports.
func NewProvider(mode Mode, transports ...Transport) *Provider {
	p := &Provider{mode: mode, transports: make(map[domain.Channel]Transport)}
	for _, t := range transports {
		p.Register(t)
	}
	return p
}

// Register adds or replaces the transport for its channel.
func (p *Provider) Register(t Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transports[t.Channel()] = t
}

// Mode returns the provider's mode.
func (p *Provider) Mode() Mode { return p.mode }

// Configured reports whether a transport is registered for ch.
func (p *Provider) Configured(ch domain.Channel) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.transports[ch]
	return ok
}

// Send validates the recipient for the message's channel and hands the
// message to that channel's transport. Transport errors are returned as-is,
// wrapped with the channel name.
func (p *Provider) Send(ctx context.Context, msg Message) (Receipt, error) {
	if !msg.Channel.Valid() {
		return Receipt{}, fmt.Errorf("%w: %q", ErrUnknownChannel, msg.Channel)
	}
	if err := ValidateRecipient(msg.Channel, msg.Recipient); err != nil {
		return Receipt{}, err
	}

	p.mu.RLock()
	t, ok := p.transports[msg.Channel]
	p.mu.RUnlock()

	if !ok {
		if p.mode != ModeSandbox {
			return Receipt{}, fmt.Errorf("%s: %w", msg.Channel, ErrTransportNotConfigured)
		}
		logger.Info("delivery sandbox: message not sent",
			"channel", msg.Channel, "message_id", msg.MessageID, "email", msg.Recipient.Email, "phone", msg.Recipient.Phone)
		return Receipt{Channel: msg.Channel, ProviderMessageID: "sandbox-" + uuid.New().String(), Sandbox: true}, nil
	}

	receipt, err := t.Send(ctx, msg)
	if err != nil {
		return Receipt{}, fmt.Errorf("%s: %w", msg.Channel, err)
	}
	receipt.Channel = msg.Channel
	return receipt, nil
}

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ().-]{5,20}$`)

// ValidateRecipient checks that r has a usable contact for ch. Email needs a
// parseable address; SMS and WhatsApp need a phone number. In-app messages
// are addressed by account and need no contact.
func ValidateRecipient(ch domain.Channel, r domain.Recipient) error {
	switch ch {
	case domain.ChannelEmail:
		if strings.TrimSpace(r.Email) == "" {
			return fmt.Errorf("%w: email address required", ErrInvalidRecipient)
		}
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return fmt.Errorf("%w: malformed email address", ErrInvalidRecipient)
		}
	case domain.ChannelSMS, domain.ChannelWhatsApp:
		if strings.TrimSpace(r.Phone) == "" {
			return fmt.Errorf("%w: phone number required", ErrInvalidRecipient)
		}
		if !phonePattern.MatchString(strings.TrimSpace(r.Phone)) {
			return fmt.Errorf("%w: malformed phone number", ErrInvalidRecipient)
		}
	}
	return nil
}

// NormalizePhone strips formatting and returns "+<digits>". A number without
// a leading plus is assumed to already include its country code.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
