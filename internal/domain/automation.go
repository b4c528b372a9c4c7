package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TriggerType enumerates the business events an automation can react to.
type TriggerType string

const (
	TriggerBookingCreated       TriggerType = "booking_created"
	TriggerBookingConfirmed     TriggerType = "booking_confirmed"
	TriggerCheckInReminder      TriggerType = "check_in_reminder"
	TriggerCheckInInstructions  TriggerType = "check_in_instructions"
	TriggerCheckOutReminder     TriggerType = "check_out_reminder"
	TriggerCheckOutInstructions TriggerType = "check_out_instructions"
	TriggerReviewRequest        TriggerType = "review_request"
	TriggerBookingCompleted     TriggerType = "booking_completed"
	TriggerPaymentDue           TriggerType = "payment_due"
	TriggerPaymentReminder      TriggerType = "payment_reminder"
	TriggerPaymentOverdue       TriggerType = "payment_overdue"
)

// AllTriggers lists every supported trigger in a stable order.
var AllTriggers = []TriggerType{
	TriggerBookingCreated,
	TriggerBookingConfirmed,
	TriggerCheckInReminder,
	TriggerCheckInInstructions,
	TriggerCheckOutReminder,
	TriggerCheckOutInstructions,
	TriggerReviewRequest,
	TriggerBookingCompleted,
	TriggerPaymentDue,
	TriggerPaymentReminder,
	TriggerPaymentOverdue,
}

// Valid reports whether t is one of the fixed trigger types.
func (t TriggerType) Valid() bool {
	for _, known := range AllTriggers {
		if t == known {
			return true
		}
	}
	return false
}

// Anchor identifies which date a trigger's offset is measured from.
type Anchor string

const (
	AnchorNow      Anchor = "now"
	AnchorCheckIn  Anchor = "check_in"
	AnchorCheckOut Anchor = "check_out"
	AnchorDueDate  Anchor = "due_date"
)

// Anchor returns the reference date kind for the trigger.
func (t TriggerType) Anchor() Anchor {
	switch t {
	case TriggerCheckInReminder, TriggerCheckInInstructions:
		return AnchorCheckIn
	case TriggerCheckOutReminder, TriggerCheckOutInstructions,
		TriggerReviewRequest, TriggerBookingCompleted:
		return AnchorCheckOut
	case TriggerPaymentDue, TriggerPaymentReminder, TriggerPaymentOverdue:
		return AnchorDueDate
	default:
		return AnchorNow
	}
}

// Channel identifies the transport used to deliver a message.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelInApp    Channel = "in_app"
)

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelInApp:
		return true
	}
	return false
}

// UsesSubject is true for channels that carry a subject line.
func (c Channel) UsesSubject() bool { return c == ChannelEmail }

// NeedsPhone is true for channels addressed by phone number.
func (c Channel) NeedsPhone() bool { return c == ChannelSMS || c == ChannelWhatsApp }

// AnalyticsCounter names one of the monotonic automation counters.
type AnalyticsCounter string

const (
	CounterSent    AnalyticsCounter = "total_sent"
	CounterOpened  AnalyticsCounter = "total_opened"
	CounterClicked AnalyticsCounter = "total_clicked"
)

// Valid reports whether c is a known counter column.
func (c AnalyticsCounter) Valid() bool {
	return c == CounterSent || c == CounterOpened || c == CounterClicked
}

// Automation is a persisted rule mapping a trigger to a message template,
// a timing offset and a delivery channel.
type Automation struct {
	ID          string      `json:"id" db:"id"`
	AccountID   string      `json:"account_id" db:"account_id"`
	Name        string      `json:"name" db:"name"`
	Trigger     TriggerType `json:"trigger" db:"trigger"`
	OffsetHours int         `json:"offset_hours" db:"offset_hours"`
	TimeOfDay   string      `json:"time_of_day,omitempty" db:"time_of_day"`
	Channel     Channel     `json:"channel" db:"channel"`
	Subject     string      `json:"subject,omitempty" db:"subject"`
	Body        string      `json:"body" db:"body"`
	PropertyIDs []string    `json:"property_ids,omitempty" db:"property_ids"`
	RentalType  string      `json:"rental_type,omitempty" db:"rental_type"`
	Active      bool        `json:"active" db:"active"`

	// Analytics (monotonic, maintained by the store)
	TotalSent    int64 `json:"total_sent" db:"total_sent"`
	TotalOpened  int64 `json:"total_opened" db:"total_opened"`
	TotalClicked int64 `json:"total_clicked" db:"total_clicked"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AppliesTo reports whether the automation's scope filters admit an event on
// the given property and rental type. An empty filter admits everything.
func (a *Automation) AppliesTo(propertyID, rentalType string) bool {
	if len(a.PropertyIDs) > 0 {
		found := false
		for _, id := range a.PropertyIDs {
			if id == propertyID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if a.RentalType != "" && !strings.EqualFold(a.RentalType, rentalType) {
		return false
	}
	return true
}

// ParseTimeOfDay parses a 24h "HH:MM" string.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("time of day %q must be HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time of day %q has an invalid hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day %q has an invalid minute", s)
	}
	return hour, minute, nil
}
