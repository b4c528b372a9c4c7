package automation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/logger"
)

// Service implements the automation registry. It validates rule definitions
// and coordinates with the property ownership collaborator. All public
// methods are safe for concurrent use if the underlying repository is.
type Service struct {
	repo  Repository
	props PropertyOwnership
}

// NewService creates an automation service backed by the given repository
// and property ownership check.
func NewService(repo Repository, props PropertyOwnership) *Service {
	return &Service{repo: repo, props: props}
}

// Get returns a single automation.
func (s *Service) Get(ctx context.Context, accountID, id string) (*domain.Automation, error) {
	return s.repo.Get(ctx, accountID, id)
}

// List returns automations matching the filter.
func (s *Service) List(ctx context.Context, accountID string, f ListFilter) ([]domain.Automation, int, error) {
	return s.repo.List(ctx, accountID, f)
}

// FindActive returns the active automations for a trigger.
func (s *Service) FindActive(ctx context.Context, accountID string, trigger domain.TriggerType) ([]domain.Automation, error) {
	return s.repo.FindActive(ctx, accountID, trigger)
}

// Create validates and persists a new automation. New automations are
// active unless the input says otherwise.
func (s *Service) Create(ctx context.Context, accountID string, in CreateInput) (*domain.Automation, error) {
	a := &domain.Automation{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Name:        strings.TrimSpace(in.Name),
		Trigger:     in.Trigger,
		OffsetHours: in.OffsetHours,
		TimeOfDay:   strings.TrimSpace(in.TimeOfDay),
		Channel:     in.Channel,
		Subject:     in.Subject,
		Body:        in.Body,
		PropertyIDs: dedupeIDs(in.PropertyIDs),
		RentalType:  strings.TrimSpace(in.RentalType),
		Active:      true,
	}
	if in.Active != nil {
		a.Active = *in.Active
	}
	if a.Name == "" {
		a.Name = string(a.Trigger)
	}

	if err := s.validate(ctx, a); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create automation: %w", err)
	}

	logger.Info("automation created", "account_id", accountID, "automation_id", a.ID,
		"trigger", a.Trigger, "channel", a.Channel)
	return a, nil
}

// Update applies the non-nil fields, re-validates the merged rule and
// persists it. Analytics counters are untouched.
func (s *Service) Update(ctx context.Context, accountID, id string, u UpdateFields) (*domain.Automation, error) {
	a, err := s.repo.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	if u.Name != nil {
		a.Name = strings.TrimSpace(*u.Name)
	}
	if u.Trigger != nil {
		a.Trigger = *u.Trigger
	}
	if u.OffsetHours != nil {
		a.OffsetHours = *u.OffsetHours
	}
	if u.TimeOfDay != nil {
		a.TimeOfDay = strings.TrimSpace(*u.TimeOfDay)
	}
	if u.Channel != nil {
		a.Channel = *u.Channel
	}
	if u.Subject != nil {
		a.Subject = *u.Subject
	}
	if u.Body != nil {
		a.Body = *u.Body
	}
	if u.PropertyIDs != nil {
		a.PropertyIDs = dedupeIDs(*u.PropertyIDs)
	}
	if u.RentalType != nil {
		a.RentalType = strings.TrimSpace(*u.RentalType)
	}
	if u.Active != nil {
		a.Active = *u.Active
	}

	if err := s.validate(ctx, a); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes an automation. Scheduled messages it produced keep their
// automation id for history.
func (s *Service) Delete(ctx context.Context, accountID, id string) error {
	return s.repo.Delete(ctx, accountID, id)
}

// Toggle flips the active flag and returns the new value.
func (s *Service) Toggle(ctx context.Context, accountID, id string) (bool, error) {
	active, err := s.repo.Toggle(ctx, accountID, id)
	if err != nil {
		return false, err
	}
	logger.Info("automation toggled", "account_id", accountID, "automation_id", id, "active", active)
	return active, nil
}

// IncrementCounter adds one to a monotonic analytics counter.
func (s *Service) IncrementCounter(ctx context.Context, accountID, id string, counter domain.AnalyticsCounter) error {
	if !counter.Valid() {
		return ErrInvalidCounter
	}
	return s.repo.Increment(ctx, accountID, id, counter)
}

func (s *Service) validate(ctx context.Context, a *domain.Automation) error {
	if !a.Trigger.Valid() {
		return &ValidationError{Field: "trigger", Message: fmt.Sprintf("unknown trigger %q", a.Trigger)}
	}
	if !a.Channel.Valid() {
		return &ValidationError{Field: "channel", Message: fmt.Sprintf("unknown channel %q", a.Channel)}
	}
	if strings.TrimSpace(a.Body) == "" {
		return &ValidationError{Field: "body", Message: "body template is required"}
	}
	if a.Channel.UsesSubject() && strings.TrimSpace(a.Subject) == "" {
		return &ValidationError{Field: "subject", Message: "subject template is required for email"}
	}
	if !a.Channel.UsesSubject() {
		a.Subject = ""
	}
	if a.TimeOfDay != "" {
		if _, _, err := domain.ParseTimeOfDay(a.TimeOfDay); err != nil {
			return &ValidationError{Field: "time_of_day", Message: err.Error()}
		}
	}
	return s.validateProperties(ctx, a.AccountID, a.PropertyIDs)
}

func (s *Service) validateProperties(ctx context.Context, accountID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if s.props == nil {
		return fmt.Errorf("property ownership check is not configured")
	}
	owned, err := s.props.OwnedPropertyIDs(ctx, accountID, ids)
	if err != nil {
		return fmt.Errorf("check property ownership: %w", err)
	}
	var invalid []string
	for _, id := range ids {
		if !owned[id] {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return &ValidationError{
			Field:              "property_ids",
			Message:            "properties do not belong to this account",
			InvalidPropertyIDs: invalid,
		}
	}
	return nil
}

func dedupeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
