package domain

import "time"

// MessageStatus enumerates the lifecycle of a scheduled message.
type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSending   MessageStatus = "sending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
	MessageCancelled MessageStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool {
	switch s {
	case MessagePending, MessageSending, MessageSent, MessageDelivered, MessageFailed, MessageCancelled:
		return true
	}
	return false
}

// IsTerminal is true once a message can no longer be dispatched. SENT is
// terminal for dispatch purposes but may still advance to DELIVERED.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageSent || s == MessageDelivered || s == MessageFailed || s == MessageCancelled
}

var allowedTransitions = map[MessageStatus][]MessageStatus{
	MessagePending: {MessageSending, MessageFailed, MessageCancelled},
	MessageSending: {MessageSent, MessageFailed},
	MessageSent:    {MessageDelivered},
}

// CanTransition reports whether the lifecycle allows moving from one status
// to another.
func CanTransition(from, to MessageStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Recipient is the addressee of a scheduled message.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// HasContact is true when at least one contact point is present.
func (r Recipient) HasContact() bool { return r.Email != "" || r.Phone != "" }

// ScheduledMessage is one fully rendered, recipient-bound unit of outbound
// communication with its own lifecycle.
type ScheduledMessage struct {
	ID           string      `json:"id" db:"id"`
	AccountID    string      `json:"account_id" db:"account_id"`
	AutomationID *string     `json:"automation_id,omitempty" db:"automation_id"`
	BookingID    *string     `json:"booking_id,omitempty" db:"booking_id"`
	TenantID     *string     `json:"tenant_id,omitempty" db:"tenant_id"`
	Trigger      TriggerType `json:"trigger,omitempty" db:"trigger"`
	Channel      Channel     `json:"channel" db:"channel"`

	Recipient Recipient `json:"recipient"`
	Subject   string    `json:"subject,omitempty" db:"subject"`
	Body      string    `json:"body" db:"body"`

	ScheduledFor time.Time     `json:"scheduled_for" db:"scheduled_for"`
	Status       MessageStatus `json:"status" db:"status"`

	SentAt      *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	OpenedAt    *time.Time `json:"opened_at,omitempty" db:"opened_at"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty" db:"clicked_at"`

	ErrorMessage      string `json:"error_message,omitempty" db:"error_message"`
	ProviderMessageID string `json:"provider_message_id,omitempty" db:"provider_message_id"`
	DedupKey          string `json:"-" db:"dedup_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsDue reports whether the message is eligible for dispatch at now.
func (m *ScheduledMessage) IsDue(now time.Time) bool {
	return m.Status == MessagePending && !m.ScheduledFor.After(now)
}

// EngagementEvent is a post-send signal reported by a transport or the host
// application.
type EngagementEvent string

const (
	EventDelivered EngagementEvent = "delivered"
	EventOpened    EngagementEvent = "opened"
	EventClicked   EngagementEvent = "clicked"
)

// Valid reports whether e is a known engagement event.
func (e EngagementEvent) Valid() bool {
	return e == EventDelivered || e == EventOpened || e == EventClicked
}
