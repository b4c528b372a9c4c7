package message

import (
	"context"
	"time"

	"github.com/ignite/guestcomms/internal/domain"
)

// Repository defines the data access contract for scheduled messages.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts a new message. Returns ErrDuplicate when a message with
	// the same non-empty dedup key already exists.
	Create(ctx context.Context, m *domain.ScheduledMessage) error

	// Get returns a single message. Returns ErrNotFound if it doesn't exist
	// for the account.
	Get(ctx context.Context, accountID, id string) (*domain.ScheduledMessage, error)

	// List returns messages matching the filter, ordered by scheduled_for DESC.
	List(ctx context.Context, accountID string, filter ListFilter) ([]domain.ScheduledMessage, int, error)

	// ListDue returns pending messages with scheduled_for <= now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledMessage, error)

	// Transition moves a message from one status to another only if it is
	// still in the expected status at write time. applied is false when no
	// row matched (the message moved on or does not exist).
	Transition(ctx context.Context, id string, from, to domain.MessageStatus, f TransitionFields) (applied bool, err error)

	// MarkEngagement sets opened_at or clicked_at once for a sent or
	// delivered message. first is true only for the call that set it.
	MarkEngagement(ctx context.Context, accountID, id string, event domain.EngagementEvent, at time.Time) (first bool, err error)

	// FailStale moves messages stuck in sending since before cutoff to
	// failed and returns how many were moved.
	FailStale(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// TransitionFields carries the columns written alongside a status change.
// Zero values are not written.
type TransitionFields struct {
	At                time.Time
	ErrorMessage      string
	ProviderMessageID string
}

// ListFilter controls pagination and filtering for message lists.
type ListFilter struct {
	Status       string
	BookingID    string
	AutomationID string
	Limit        int
	Offset       int
}

// Analytics receives counter increments for engagement on automated
// messages. Implemented by the automation registry.
type Analytics interface {
	IncrementCounter(ctx context.Context, accountID, automationID string, counter domain.AnalyticsCounter) error
}
