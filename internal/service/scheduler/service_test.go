package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/guestcomms/internal/delivery"
	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/repository/memory"
	"github.com/ignite/guestcomms/internal/service/automation"
	"github.com/ignite/guestcomms/internal/service/message"
	"github.com/ignite/guestcomms/internal/service/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acct = "acct-1"

// recordingTransport accepts every message except those addressed to failFor.
type recordingTransport struct {
	channel domain.Channel
	failFor string
	delay   time.Duration

	mu   sync.Mutex
	sent []delivery.Message
}

func (r *recordingTransport) Channel() domain.Channel { return r.channel }

func (r *recordingTransport) Send(_ context.Context, msg delivery.Message) (delivery.Receipt, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.failFor != "" && msg.Recipient.Email == r.failFor {
		return delivery.Receipt{}, errors.New("mailbox unavailable")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return delivery.Receipt{ProviderMessageID: "p-" + msg.MessageID}, nil
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fixture struct {
	automations *automation.Service
	messages    *message.Service
	msgRepo     *memory.MessageRepo
	email       *recordingTransport
	svc         *scheduler.Service
	now         time.Time
}

type bookingLoader map[string]domain.EventSnapshot

func (b bookingLoader) LoadBooking(_ context.Context, _, bookingID string) (*domain.EventSnapshot, error) {
	s, ok := b[bookingID]
	if !ok {
		return nil, scheduler.ErrBookingNotFound
	}
	return &s, nil
}

func newFixture(t *testing.T, loader scheduler.SnapshotLoader) *fixture {
	t.Helper()
	props := memory.NewProperties()
	props.Add(acct, "prop-a", "prop-b")

	f := &fixture{
		msgRepo: memory.NewMessageRepo(),
		email:   &recordingTransport{channel: domain.ChannelEmail},
		now:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.automations = automation.NewService(memory.NewAutomationRepo(), props)
	f.messages = message.NewService(f.msgRepo, f.automations)
	f.messages.SetClock(func() time.Time { return f.now })

	provider := delivery.NewProvider(delivery.ModeLive, f.email)
	f.svc = scheduler.NewService(f.automations, f.messages, provider, loader, scheduler.Options{Concurrency: 4})
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) createAutomation(t *testing.T, edit func(*automation.CreateInput)) *domain.Automation {
	t.Helper()
	in := automation.CreateInput{
		Trigger:     domain.TriggerCheckInReminder,
		OffsetHours: -24,
		TimeOfDay:   "09:00",
		Channel:     domain.ChannelEmail,
		Subject:     "See you soon, {{guestName}}",
		Body:        "{{propertyName}} is ready for you on {{checkInDate}}.",
	}
	if edit != nil {
		edit(&in)
	}
	a, err := f.automations.Create(context.Background(), acct, in)
	require.NoError(t, err)
	return a
}

func snapshot(bookingID, propertyID, email string) domain.EventSnapshot {
	checkIn := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	checkOut := checkIn.AddDate(0, 0, 3)
	return domain.EventSnapshot{
		BookingID:    bookingID,
		GuestName:    "Amara Okafor",
		GuestEmail:   email,
		PropertyID:   propertyID,
		PropertyName: "Seaside Cottage",
		CheckIn:      &checkIn,
		CheckOut:     &checkOut,
	}
}

func TestScheduleForEventRendersAndTimes(t *testing.T) {
	f := newFixture(t, nil)
	a := f.createAutomation(t, nil)

	got, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snapshot("bk-1", "prop-a", "amara@example.com"))
	require.NoError(t, err)
	require.Len(t, got, 1)

	m := got[0]
	assert.Equal(t, domain.MessagePending, m.Status)
	assert.Equal(t, a.ID, *m.AutomationID)
	assert.Equal(t, "bk-1", *m.BookingID)
	assert.Nil(t, m.TenantID)
	assert.Equal(t, "See you soon, Amara Okafor", m.Subject)
	assert.Equal(t, "Seaside Cottage is ready for you on Wednesday, May 20, 2026.", m.Body)
	assert.True(t, time.Date(2026, 5, 19, 9, 0, 0, 0, time.UTC).Equal(m.ScheduledFor))
}

func TestScheduleForEventPropertyScope(t *testing.T) {
	f := newFixture(t, nil)
	f.createAutomation(t, func(in *automation.CreateInput) { in.PropertyIDs = []string{"prop-a"} })

	got, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snapshot("bk-1", "prop-b", "amara@example.com"))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snapshot("bk-2", "prop-a", "amara@example.com"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestScheduleForEventRentalTypeAndInactive(t *testing.T) {
	f := newFixture(t, nil)
	f.createAutomation(t, func(in *automation.CreateInput) { in.RentalType = "long_term" })
	inactive := false
	f.createAutomation(t, func(in *automation.CreateInput) { in.Active = &inactive })

	snap := snapshot("bk-1", "prop-a", "amara@example.com")
	snap.RentalType = "short_term"
	got, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snap)
	require.NoError(t, err)
	assert.Empty(t, got)

	snap.RentalType = "LONG_TERM"
	got, err = f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snap)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestScheduleForEventDeduplicatesPerBooking(t *testing.T) {
	f := newFixture(t, nil)
	f.createAutomation(t, nil)
	snap := snapshot("bk-1", "prop-a", "amara@example.com")

	first, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snap)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snap)
	require.NoError(t, err)
	assert.Empty(t, second)

	// Without an entity id there is nothing to de-duplicate on.
	snap.BookingID = ""
	for i := 0; i < 2; i++ {
		got, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snap)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
}

func TestScheduleForEventSkipsUnusableSnapshots(t *testing.T) {
	f := newFixture(t, nil)
	f.createAutomation(t, nil)

	noContact := snapshot("bk-1", "prop-a", "")
	got, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, noContact)
	require.NoError(t, err)
	assert.Empty(t, got)

	noCheckIn := snapshot("bk-2", "prop-a", "amara@example.com")
	noCheckIn.CheckIn = nil
	got, err = f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, noCheckIn)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.svc.ScheduleForEvent(context.Background(), acct, "birthday", noCheckIn)
	assert.ErrorIs(t, err, scheduler.ErrUnknownTrigger)
}

func TestScheduleForEventChecksRecipientAgainstChannel(t *testing.T) {
	f := newFixture(t, nil)
	f.createAutomation(t, func(in *automation.CreateInput) {
		in.Name = "sms"
		in.Channel = domain.ChannelSMS
	})
	f.createAutomation(t, func(in *automation.CreateInput) { in.Name = "email" })

	// Email-only guest: the SMS rule is skipped, the email rule still schedules.
	got, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snapshot("bk-1", "prop-a", "amara@example.com"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ChannelEmail, got[0].Channel)

	// Phone-only guest: the reverse.
	phoneOnly := snapshot("bk-2", "prop-a", "")
	phoneOnly.GuestPhone = "+14155550134"
	got, err = f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, phoneOnly)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ChannelSMS, got[0].Channel)

	// Malformed email never reaches the store.
	got, err = f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snapshot("bk-3", "prop-a", "not-an-address"))
	require.NoError(t, err)
	assert.Empty(t, got)

	pending, total, err := f.messages.List(context.Background(), acct, message.ListFilter{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, m := range pending {
		assert.NoError(t, delivery.ValidateRecipient(m.Channel, m.Recipient))
	}
}

func TestScheduleForEventSMSHasNoSubject(t *testing.T) {
	f := newFixture(t, nil)
	f.createAutomation(t, func(in *automation.CreateInput) {
		in.Trigger = domain.TriggerBookingConfirmed
		in.Channel = domain.ChannelSMS
		in.OffsetHours = 0
		in.TimeOfDay = ""
		in.Body = "Confirmed: {{propertyName}}"
	})
	snap := snapshot("bk-1", "prop-a", "")
	snap.GuestPhone = "+14155550134"

	got, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerBookingConfirmed, snap)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Subject)
	assert.Equal(t, domain.ChannelSMS, got[0].Channel)
	assert.True(t, f.now.Equal(got[0].ScheduledFor))
}

func scheduleDue(t *testing.T, f *fixture, emails ...string) {
	t.Helper()
	for i, e := range emails {
		snap := snapshot("bk-"+string(rune('a'+i)), "prop-a", e)
		// Check-in tomorrow so the -24h reminder is due now.
		checkIn := f.now.Add(24 * time.Hour)
		snap.CheckIn = &checkIn
		_, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snap)
		require.NoError(t, err)
	}
}

func TestProcessPendingIsolatesFailures(t *testing.T) {
	f := newFixture(t, nil)
	a := f.createAutomation(t, func(in *automation.CreateInput) { in.TimeOfDay = "" })
	f.email.failFor = "broken@example.com"
	scheduleDue(t, f, "a@example.com", "b@example.com", "broken@example.com", "c@example.com", "d@example.com")

	res, err := f.svc.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scheduler.TickResult{Processed: 5, Succeeded: 4, Failed: 1}, res)

	failed, _, err := f.messages.List(context.Background(), acct, message.ListFilter{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "broken@example.com", failed[0].Recipient.Email)
	assert.Contains(t, failed[0].ErrorMessage, "mailbox unavailable")
	assert.Nil(t, failed[0].SentAt)

	sent, _, err := f.messages.List(context.Background(), acct, message.ListFilter{Status: "sent"})
	require.NoError(t, err)
	assert.Len(t, sent, 4)
	for _, m := range sent {
		assert.NotNil(t, m.SentAt)
		assert.Equal(t, "p-"+m.ID, m.ProviderMessageID)
	}

	stored, err := f.automations.Get(context.Background(), acct, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stored.TotalSent)
}

func TestProcessPendingTwiceSendsOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.createAutomation(t, func(in *automation.CreateInput) { in.TimeOfDay = "" })
	scheduleDue(t, f, "a@example.com", "b@example.com")

	first, err := f.svc.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Succeeded)

	second, err := f.svc.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scheduler.TickResult{}, second)
	assert.Equal(t, 2, f.email.count())
}

func TestOverlappingTicksDeliverEachMessageOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.createAutomation(t, func(in *automation.CreateInput) { in.TimeOfDay = "" })
	f.email.delay = 5 * time.Millisecond
	scheduleDue(t, f, "a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com", "f@example.com")

	var wg sync.WaitGroup
	results := make([]scheduler.TickResult, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.ProcessPending(context.Background())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	var processed int
	for _, r := range results {
		processed += r.Processed
	}
	assert.Equal(t, 6, processed)
	assert.Equal(t, 6, f.email.count())
}

func TestProcessPendingLeavesFutureAndCancelledAlone(t *testing.T) {
	f := newFixture(t, nil)
	f.createAutomation(t, nil)
	got, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snapshot("bk-1", "prop-a", "amara@example.com"))
	require.NoError(t, err)
	require.Len(t, got, 1)

	res, err := f.svc.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Processed)

	_, err = f.svc.Cancel(context.Background(), acct, got[0].ID)
	require.NoError(t, err)

	f.now = got[0].ScheduledFor.Add(time.Minute)
	res, err = f.svc.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Zero(t, f.email.count())
}

func TestProcessPendingUnconfiguredChannelFails(t *testing.T) {
	f := newFixture(t, nil)
	f.createAutomation(t, func(in *automation.CreateInput) {
		in.Channel = domain.ChannelWhatsApp
		in.TimeOfDay = ""
	})
	snap := snapshot("bk-1", "prop-a", "")
	snap.GuestPhone = "+447700900123"
	checkIn := f.now.Add(24 * time.Hour)
	snap.CheckIn = &checkIn
	_, err := f.svc.ScheduleForEvent(context.Background(), acct, domain.TriggerCheckInReminder, snap)
	require.NoError(t, err)

	res, err := f.svc.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	failed, _, err := f.messages.List(context.Background(), acct, message.ListFilter{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].ErrorMessage, "not configured")
}

type failingMessages struct{ scheduler.Messages }

func (failingMessages) ListDue(context.Context, int) ([]domain.ScheduledMessage, error) {
	return nil, errors.New("connection refused")
}

func TestProcessPendingReturnsQueryError(t *testing.T) {
	svc := scheduler.NewService(nil, failingMessages{}, nil, nil, scheduler.Options{})
	_, err := svc.ProcessPending(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestTestAutomation(t *testing.T) {
	loader := bookingLoader{"bk-9": snapshot("bk-9", "prop-a", "real@example.com")}
	f := newFixture(t, loader)
	a := f.createAutomation(t, nil)
	to := domain.Recipient{Name: "Ops", Email: "ops@example.com"}

	res, err := f.svc.TestAutomation(context.Background(), acct, a.ID, scheduler.TestRequest{Recipient: to})
	require.NoError(t, err)
	assert.Equal(t, "See you soon, Alex Morgan", res.Subject)
	assert.NotEmpty(t, res.Receipt.ProviderMessageID)

	res, err = f.svc.TestAutomation(context.Background(), acct, a.ID, scheduler.TestRequest{Recipient: to, BookingID: "bk-9"})
	require.NoError(t, err)
	assert.Equal(t, "See you soon, Amara Okafor", res.Subject)

	require.Equal(t, 2, f.email.count())
	assert.Equal(t, "ops@example.com", f.email.sent[0].Recipient.Email)

	list, total, err := f.messages.List(context.Background(), acct, message.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
	stored, err := f.automations.Get(context.Background(), acct, a.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.TotalSent)
}

func TestTestAutomationSurfacesDeliveryError(t *testing.T) {
	f := newFixture(t, nil)
	a := f.createAutomation(t, nil)
	f.email.failFor = "ops@example.com"

	_, err := f.svc.TestAutomation(context.Background(), acct, a.ID, scheduler.TestRequest{Recipient: domain.Recipient{Email: "ops@example.com"}})
	assert.ErrorIs(t, err, scheduler.ErrTestDelivery)

	_, err = f.svc.TestAutomation(context.Background(), acct, a.ID, scheduler.TestRequest{Recipient: domain.Recipient{Phone: "+1415555"}})
	assert.ErrorIs(t, err, delivery.ErrInvalidRecipient)

	_, err = f.svc.TestAutomation(context.Background(), acct, a.ID, scheduler.TestRequest{Recipient: domain.Recipient{Email: "ops@example.com"}, BookingID: "bk-1"})
	assert.ErrorIs(t, err, scheduler.ErrSnapshotsUnavailable)

	_, err = f.svc.TestAutomation(context.Background(), acct, "missing", scheduler.TestRequest{})
	assert.ErrorIs(t, err, automation.ErrNotFound)
}
