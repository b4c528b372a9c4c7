package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/logger"
)

// Service implements the scheduled message store. All public methods are
// safe for concurrent use if the underlying repository is.
type Service struct {
	repo      Repository
	analytics Analytics
	now       func() time.Time
}

// NewService creates a message service. analytics may be nil, in which case
// engagement is recorded on the message only.
func NewService(repo Repository, analytics Analytics) *Service {
	return &Service{repo: repo, analytics: analytics, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Get returns a single message.
func (s *Service) Get(ctx context.Context, accountID, id string) (*domain.ScheduledMessage, error) {
	return s.repo.Get(ctx, accountID, id)
}

// List returns messages matching the filter.
func (s *Service) List(ctx context.Context, accountID string, f ListFilter) ([]domain.ScheduledMessage, int, error) {
	return s.repo.List(ctx, accountID, f)
}

// Schedule validates and persists a new pending message. A repeated dedup
// key returns ErrDuplicate and nothing is written.
func (s *Service) Schedule(ctx context.Context, m *domain.ScheduledMessage) error {
	if strings.TrimSpace(m.Body) == "" {
		return ErrEmptyBody
	}
	if !m.Recipient.HasContact() {
		return ErrNoRecipient
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := s.now()
	m.Status = domain.MessagePending
	m.SentAt, m.DeliveredAt, m.OpenedAt, m.ClickedAt = nil, nil, nil, nil
	m.ErrorMessage = ""
	m.CreatedAt, m.UpdatedAt = now, now
	return s.repo.Create(ctx, m)
}

// ListDue returns pending messages whose scheduled time has arrived.
func (s *Service) ListDue(ctx context.Context, limit int) ([]domain.ScheduledMessage, error) {
	if limit <= 0 {
		limit = 500
	}
	return s.repo.ListDue(ctx, s.now(), limit)
}

// ClaimForSending performs the PENDING -> SENDING compare-and-swap. A false
// result means another tick already claimed (or cancelled) the message.
func (s *Service) ClaimForSending(ctx context.Context, id string) (bool, error) {
	return s.repo.Transition(ctx, id, domain.MessagePending, domain.MessageSending,
		TransitionFields{At: s.now()})
}

// MarkSent records a successful hand-off to the transport.
func (s *Service) MarkSent(ctx context.Context, id, providerMessageID string) (time.Time, error) {
	at := s.now()
	ok, err := s.repo.Transition(ctx, id, domain.MessageSending, domain.MessageSent,
		TransitionFields{At: at, ProviderMessageID: providerMessageID})
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, fmt.Errorf("mark sent %s: %w", id, ErrInvalidTransition)
	}
	return at, nil
}

// MarkFailed records a delivery failure for a message in the given status.
func (s *Service) MarkFailed(ctx context.Context, id string, from domain.MessageStatus, reason string) error {
	if reason == "" {
		reason = "delivery failed"
	}
	ok, err := s.repo.Transition(ctx, id, from, domain.MessageFailed,
		TransitionFields{At: s.now(), ErrorMessage: reason})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("mark failed %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// Cancel moves a pending message to cancelled.
func (s *Service) Cancel(ctx context.Context, accountID, id string) (*domain.ScheduledMessage, error) {
	m, err := s.repo.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.Transition(ctx, id, domain.MessagePending, domain.MessageCancelled,
		TransitionFields{At: s.now()})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCancellable
	}
	m.Status = domain.MessageCancelled
	logger.Info("scheduled message cancelled", "account_id", accountID, "message_id", id)
	return m, nil
}

// RecordEvent applies a delivery or engagement signal. Delivered moves a
// sent message to delivered; opened and clicked stamp the message once and
// bump the originating automation's counter on the first stamp.
func (s *Service) RecordEvent(ctx context.Context, accountID, id string, event domain.EngagementEvent) (*domain.ScheduledMessage, error) {
	if !event.Valid() {
		return nil, fmt.Errorf("unknown engagement event %q", event)
	}
	m, err := s.repo.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	switch event {
	case domain.EventDelivered:
		if m.Status == domain.MessageDelivered {
			return m, nil
		}
		ok, err := s.repo.Transition(ctx, id, domain.MessageSent, domain.MessageDelivered,
			TransitionFields{At: s.now()})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("record delivered on %s message: %w", m.Status, ErrInvalidTransition)
		}
	default:
		first, err := s.repo.MarkEngagement(ctx, accountID, id, event, s.now())
		if err != nil {
			return nil, err
		}
		if first && m.AutomationID != nil && s.analytics != nil {
			counter := domain.CounterOpened
			if event == domain.EventClicked {
				counter = domain.CounterClicked
			}
			if err := s.analytics.IncrementCounter(ctx, accountID, *m.AutomationID, counter); err != nil {
				logger.Warn("engagement counter increment failed", "message_id", id, "error", err)
			}
		}
	}

	return s.repo.Get(ctx, accountID, id)
}

// FailStale fails messages stuck in sending for longer than staleAge.
func (s *Service) FailStale(ctx context.Context, staleAge time.Duration) (int64, error) {
	n, err := s.repo.FailStale(ctx, s.now().Add(-staleAge), "delivery interrupted: stuck in sending")
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Warn("failed stale sending messages", "count", n, "stale_age", staleAge)
	}
	return n, nil
}

// IsDuplicate reports whether err signals a de-duplicated schedule.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }
