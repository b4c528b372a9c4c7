package delivery

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignite/guestcomms/internal/domain"
)

// NoopTransport accepts every message without sending it. It backs the
// in-app channel when the host application has no queue configured.
type NoopTransport struct {
	channel domain.Channel
}

// NewNoopTransport returns a transport that succeeds for ch.
func NewNoopTransport(ch domain.Channel) *NoopTransport { return &NoopTransport{channel: ch} }

func (n *NoopTransport) Channel() domain.Channel { return n.channel }

func (n *NoopTransport) Send(_ context.Context, _ Message) (Receipt, error) {
	return Receipt{ProviderMessageID: "noop-" + uuid.New().String()}, nil
}
