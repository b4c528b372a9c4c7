package automation

import (
	"context"

	"github.com/ignite/guestcomms/internal/domain"
)

// Repository defines the data access contract for automations.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single automation. Returns ErrNotFound if it doesn't exist
	// for the account.
	Get(ctx context.Context, accountID, id string) (*domain.Automation, error)

	// List returns automations matching the filter, ordered by created_at DESC.
	List(ctx context.Context, accountID string, filter ListFilter) ([]domain.Automation, int, error)

	// Create inserts a new automation.
	Create(ctx context.Context, a *domain.Automation) error

	// Update replaces the editable fields of an existing automation.
	// Analytics counters are never written by Update.
	Update(ctx context.Context, a *domain.Automation) error

	// Delete removes an automation.
	Delete(ctx context.Context, accountID, id string) error

	// Toggle flips the active flag atomically and returns the new value.
	Toggle(ctx context.Context, accountID, id string) (bool, error)

	// Increment adds one to an analytics counter in a single statement.
	Increment(ctx context.Context, accountID, id string, counter domain.AnalyticsCounter) error

	// FindActive returns active automations for (account, trigger). This is
	// the event-time hot path and must be index-backed.
	FindActive(ctx context.Context, accountID string, trigger domain.TriggerType) ([]domain.Automation, error)
}

// PropertyOwnership answers which of the given property ids belong to an
// account. It is implemented by the host application's property store.
type PropertyOwnership interface {
	OwnedPropertyIDs(ctx context.Context, accountID string, ids []string) (map[string]bool, error)
}

// ListFilter controls pagination and filtering for automation lists.
type ListFilter struct {
	Trigger string
	Channel string
	Active  *bool
	Limit   int
	Offset  int
}

// CreateInput holds the fields for creating a new automation.
type CreateInput struct {
	Name        string             `json:"name"`
	Trigger     domain.TriggerType `json:"trigger"`
	OffsetHours int                `json:"offset_hours"`
	TimeOfDay   string             `json:"time_of_day"`
	Channel     domain.Channel     `json:"channel"`
	Subject     string             `json:"subject"`
	Body        string             `json:"body"`
	PropertyIDs []string           `json:"property_ids"`
	RentalType  string             `json:"rental_type"`
	Active      *bool              `json:"active"`
}

// UpdateFields holds the mutable fields for an automation update.
// Nil fields are not applied.
type UpdateFields struct {
	Name        *string             `json:"name"`
	Trigger     *domain.TriggerType `json:"trigger"`
	OffsetHours *int                `json:"offset_hours"`
	TimeOfDay   *string             `json:"time_of_day"`
	Channel     *domain.Channel     `json:"channel"`
	Subject     *string             `json:"subject"`
	Body        *string             `json:"body"`
	PropertyIDs *[]string           `json:"property_ids"`
	RentalType  *string             `json:"rental_type"`
	Active      *bool               `json:"active"`
}
