package delivery

import (
	"context"

	"github.com/ignite/guestcomms/internal/config"
	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/logger"
)

// NewFromConfig registers a transport for every channel cfg configures.
// In-app without a queue gets a no-op transport. Other unconfigured channels
// are left empty and behave according to cfg.Mode.
func NewFromConfig(ctx context.Context, cfg config.DeliveryConfig) (*Provider, error) {
	p := NewProvider(ParseMode(cfg.Mode))

	if cfg.SES.Enabled() {
		t, err := NewSESTransport(ctx, cfg.SES)
		if err != nil {
			return nil, err
		}
		p.Register(t)
	}
	if cfg.SMS.Enabled() {
		p.Register(NewSMSTransport(cfg.SMS, nil))
	}
	if cfg.WhatsApp.Enabled() {
		p.Register(NewWhatsAppTransport(cfg.WhatsApp, nil))
	}
	if cfg.InApp.QueueURL != "" {
		t, err := NewInAppTransport(ctx, cfg.InApp)
		if err != nil {
			return nil, err
		}
		p.Register(t)
	} else {
		p.Register(NewNoopTransport(domain.ChannelInApp))
	}

	for _, ch := range []domain.Channel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelWhatsApp} {
		if !p.Configured(ch) {
			logger.Warn("delivery channel not configured", "channel", ch, "mode", p.Mode())
		}
	}
	return p, nil
}
