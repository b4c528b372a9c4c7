package automation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/repository/memory"
	"github.com/ignite/guestcomms/internal/service/automation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "acct-1"

func newService(t *testing.T) (*automation.Service, *memory.AutomationRepo) {
	t.Helper()
	repo := memory.NewAutomationRepo()
	props := memory.NewProperties()
	props.Add(testAccount, "prop-a", "prop-b")
	props.Add("acct-2", "prop-z")
	return automation.NewService(repo, props), repo
}

func validInput() automation.CreateInput {
	return automation.CreateInput{
		Name:        "Check-in reminder",
		Trigger:     domain.TriggerCheckInReminder,
		OffsetHours: -24,
		TimeOfDay:   "09:00",
		Channel:     domain.ChannelEmail,
		Subject:     "See you tomorrow, {{guestName}}",
		Body:        "Your stay at {{propertyName}} starts {{checkInDate}}.",
	}
}

func TestCreate(t *testing.T) {
	svc, _ := newService(t)
	a, err := svc.Create(context.Background(), testAccount, validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.True(t, a.Active)
	assert.Equal(t, testAccount, a.AccountID)

	got, err := svc.Get(context.Background(), testAccount, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Body, got.Body)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name  string
		edit  func(*automation.CreateInput)
		field string
	}{
		{"unknown trigger", func(in *automation.CreateInput) { in.Trigger = "birthday" }, "trigger"},
		{"unknown channel", func(in *automation.CreateInput) { in.Channel = "fax" }, "channel"},
		{"empty body", func(in *automation.CreateInput) { in.Body = "  " }, "body"},
		{"email without subject", func(in *automation.CreateInput) { in.Subject = "" }, "subject"},
		{"bad time of day", func(in *automation.CreateInput) { in.TimeOfDay = "25:00" }, "time_of_day"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.edit(&in)
			_, err := svc.Create(context.Background(), testAccount, in)
			var ve *automation.ValidationError
			require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCreateSMSDoesNotNeedSubject(t *testing.T) {
	svc, _ := newService(t)
	in := validInput()
	in.Channel = domain.ChannelSMS
	in.Subject = "ignored"
	a, err := svc.Create(context.Background(), testAccount, in)
	require.NoError(t, err)
	assert.Empty(t, a.Subject)
}

func TestCreateRejectsForeignProperties(t *testing.T) {
	svc, repo := newService(t)
	in := validInput()
	in.PropertyIDs = []string{"prop-a", "prop-z", "prop-missing"}

	_, err := svc.Create(context.Background(), testAccount, in)
	var ve *automation.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"prop-missing", "prop-z"}, ve.InvalidPropertyIDs)

	list, total, err := repo.List(context.Background(), testAccount, automation.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestUpdate(t *testing.T) {
	svc, repo := newService(t)
	a, err := svc.Create(context.Background(), testAccount, validInput())
	require.NoError(t, err)
	require.NoError(t, repo.Increment(context.Background(), testAccount, a.ID, domain.CounterSent))

	body := "Updated {{guestName}}"
	props := []string{"prop-b"}
	got, err := svc.Update(context.Background(), testAccount, a.ID, automation.UpdateFields{Body: &body, PropertyIDs: &props})
	require.NoError(t, err)
	assert.Equal(t, body, got.Body)

	stored, err := svc.Get(context.Background(), testAccount, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"prop-b"}, stored.PropertyIDs)
	assert.EqualValues(t, 1, stored.TotalSent)
}

func TestUpdateValidationLeavesRuleUntouched(t *testing.T) {
	svc, _ := newService(t)
	a, err := svc.Create(context.Background(), testAccount, validInput())
	require.NoError(t, err)

	props := []string{"prop-z"}
	_, err = svc.Update(context.Background(), testAccount, a.ID, automation.UpdateFields{PropertyIDs: &props})
	assert.True(t, automation.IsValidation(err))

	stored, err := svc.Get(context.Background(), testAccount, a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PropertyIDs)
}

func TestNotFoundAcrossAccounts(t *testing.T) {
	svc, _ := newService(t)
	a, err := svc.Create(context.Background(), testAccount, validInput())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "acct-2", a.ID)
	assert.ErrorIs(t, err, automation.ErrNotFound)

	_, err = svc.Toggle(context.Background(), "acct-2", a.ID)
	assert.ErrorIs(t, err, automation.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(context.Background(), "acct-2", a.ID), automation.ErrNotFound)
}

func TestToggleAndFindActive(t *testing.T) {
	svc, _ := newService(t)
	a, err := svc.Create(context.Background(), testAccount, validInput())
	require.NoError(t, err)

	found, err := svc.FindActive(context.Background(), testAccount, domain.TriggerCheckInReminder)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	active, err := svc.Toggle(context.Background(), testAccount, a.ID)
	require.NoError(t, err)
	assert.False(t, active)

	found, err = svc.FindActive(context.Background(), testAccount, domain.TriggerCheckInReminder)
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = svc.FindActive(context.Background(), testAccount, domain.TriggerReviewRequest)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestIncrementCounter(t *testing.T) {
	svc, _ := newService(t)
	a, err := svc.Create(context.Background(), testAccount, validInput())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.IncrementCounter(context.Background(), testAccount, a.ID, domain.CounterOpened))
	}
	require.NoError(t, svc.IncrementCounter(context.Background(), testAccount, a.ID, domain.CounterClicked))
	assert.ErrorIs(t, svc.IncrementCounter(context.Background(), testAccount, a.ID, "total_bounced"), automation.ErrInvalidCounter)

	got, err := svc.Get(context.Background(), testAccount, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.TotalOpened)
	assert.EqualValues(t, 1, got.TotalClicked)
	assert.Zero(t, got.TotalSent)
}

func TestListFilter(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create(context.Background(), testAccount, validInput())
	require.NoError(t, err)
	in := validInput()
	in.Trigger = domain.TriggerReviewRequest
	in.Channel = domain.ChannelWhatsApp
	_, err = svc.Create(context.Background(), testAccount, in)
	require.NoError(t, err)

	list, total, err := svc.List(context.Background(), testAccount, automation.ListFilter{Channel: "whatsapp"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, domain.TriggerReviewRequest, list[0].Trigger)

	_, total, err = svc.List(context.Background(), testAccount, automation.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
