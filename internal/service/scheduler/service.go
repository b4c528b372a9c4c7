package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/guestcomms/internal/delivery"
	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/pkg/logger"
	"github.com/ignite/guestcomms/internal/service/message"
	"github.com/ignite/guestcomms/internal/templating"
)

// Automations is the slice of the automation registry the scheduler uses.
type Automations interface {
	Get(ctx context.Context, accountID, id string) (*domain.Automation, error)
	FindActive(ctx context.Context, accountID string, trigger domain.TriggerType) ([]domain.Automation, error)
	IncrementCounter(ctx context.Context, accountID, id string, counter domain.AnalyticsCounter) error
}

// Messages is the slice of the scheduled message store the scheduler uses.
type Messages interface {
	Schedule(ctx context.Context, m *domain.ScheduledMessage) error
	ListDue(ctx context.Context, limit int) ([]domain.ScheduledMessage, error)
	ClaimForSending(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id, providerMessageID string) (time.Time, error)
	MarkFailed(ctx context.Context, id string, from domain.MessageStatus, reason string) error
	Cancel(ctx context.Context, accountID, id string) (*domain.ScheduledMessage, error)
}

// Sender delivers a rendered message. Implemented by *delivery.Provider.
type Sender interface {
	Send(ctx context.Context, msg delivery.Message) (delivery.Receipt, error)
}

// SnapshotLoader reads the current snapshot of a booking so test sends can
// render against real data.
type SnapshotLoader interface {
	LoadBooking(ctx context.Context, accountID, bookingID string) (*domain.EventSnapshot, error)
}

// Options tunes the dispatch tick. Zero values take the defaults.
type Options struct {
	BatchSize   int // due messages loaded per tick (default 500)
	Concurrency int // messages delivered in parallel (default 8)
}

// TickResult summarises one ProcessPending run. Skipped counts messages
// another tick claimed first; they are not part of Processed.
type TickResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Service is the scheduler and dispatcher.
type Service struct {
	automations Automations
	messages    Messages
	sender      Sender
	snapshots   SnapshotLoader
	batchSize   int
	concurrency int
	now         func() time.Time
}

// NewService wires the scheduler. snapshots may be nil, in which case test
// sends by booking id are rejected.
func NewService(automations Automations, messages Messages, sender Sender, snapshots SnapshotLoader, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Service{
		automations: automations,
		messages:    messages,
		sender:      sender,
		snapshots:   snapshots,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		now:         time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ScheduleForEvent creates a pending message for every active automation
// matching trigger whose scope admits the snapshot. Automations that cannot
// produce a message for this snapshot (missing anchor date, no contact point
// for the automation's channel, already scheduled for the same booking) are
// skipped and logged; only
// registry and store failures are returned.
func (s *Service) ScheduleForEvent(ctx context.Context, accountID string, trigger domain.TriggerType, snapshot domain.EventSnapshot) ([]domain.ScheduledMessage, error) {
	if !trigger.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, trigger)
	}

	candidates, err := s.automations.FindActive(ctx, accountID, trigger)
	if err != nil {
		return nil, fmt.Errorf("find active automations: %w", err)
	}

	now := s.now()
	recipient := snapshot.Recipient()
	tplCtx := BuildContext(snapshot)
	scheduled := make([]domain.ScheduledMessage, 0, len(candidates))

	for i := range candidates {
		a := &candidates[i]
		if !a.AppliesTo(snapshot.PropertyID, snapshot.RentalType) {
			continue
		}
		if !recipient.HasContact() {
			logger.Warn("skipping automation: snapshot has no recipient contact",
				"automation_id", a.ID, "trigger", trigger, "booking_id", snapshot.BookingID)
			continue
		}
		if err := delivery.ValidateRecipient(a.Channel, recipient); err != nil {
			logger.Warn("skipping automation: recipient unusable for channel",
				"automation_id", a.ID, "channel", a.Channel, "booking_id", snapshot.BookingID, "error", err)
			continue
		}

		at, err := ComputeScheduledFor(trigger, a.OffsetHours, a.TimeOfDay, snapshot, now)
		if err != nil {
			logger.Warn("skipping automation: cannot compute send time",
				"automation_id", a.ID, "trigger", trigger, "error", err)
			continue
		}

		m := &domain.ScheduledMessage{
			AccountID:    accountID,
			AutomationID: strPtr(a.ID),
			BookingID:    strPtr(snapshot.BookingID),
			TenantID:     strPtr(snapshot.TenantID),
			Trigger:      trigger,
			Channel:      a.Channel,
			Recipient:    recipient,
			Body:         templating.Render(a.Body, tplCtx),
			ScheduledFor: at,
			DedupKey:     dedupKey(a.ID, snapshot, trigger),
		}
		if a.Channel.UsesSubject() {
			m.Subject = templating.Render(a.Subject, tplCtx)
		}
		if v := templating.Validate(a.Body, tplCtx); !v.Valid {
			logger.Debug("template variables unresolved", "automation_id", a.ID, "missing", strings.Join(v.Missing, ","))
		}

		if err := s.messages.Schedule(ctx, m); err != nil {
			if message.IsDuplicate(err) {
				logger.Info("message already scheduled for event", "automation_id", a.ID, "dedup_key", m.DedupKey)
				continue
			}
			if errors.Is(err, message.ErrEmptyBody) {
				logger.Warn("skipping automation: rendered body is empty", "automation_id", a.ID)
				continue
			}
			return scheduled, fmt.Errorf("schedule message for automation %s: %w", a.ID, err)
		}
		scheduled = append(scheduled, *m)
	}

	if len(scheduled) > 0 {
		logger.Info("scheduled messages for event", "account_id", accountID, "trigger", trigger,
			"booking_id", snapshot.BookingID, "tenant_id", snapshot.TenantID, "count", len(scheduled))
	}
	return scheduled, nil
}

// ProcessPending runs one dispatch tick. Each due message is claimed with a
// conditional PENDING -> SENDING update, delivered, and moved to SENT or
// FAILED. A delivery failure affects only its own message; the only error
// returned is a failure to load the due batch.
func (s *Service) ProcessPending(ctx context.Context) (TickResult, error) {
	due, err := s.messages.ListDue(ctx, s.batchSize)
	if err != nil {
		return TickResult{}, fmt.Errorf("list due messages: %w", err)
	}
	if len(due) == 0 {
		return TickResult{}, nil
	}

	var succeeded, failed, skipped int64

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i := range due {
		m := due[i]
		g.Go(func() error {
			switch s.dispatch(ctx, &m) {
			case outcomeSent:
				atomic.AddInt64(&succeeded, 1)
			case outcomeFailed:
				atomic.AddInt64(&failed, 1)
			default:
				atomic.AddInt64(&skipped, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := TickResult{
		Succeeded: int(succeeded),
		Failed:    int(failed),
		Skipped:   int(skipped),
	}
	res.Processed = res.Succeeded + res.Failed
	logger.Info("dispatch tick complete", "due", len(due), "processed", res.Processed,
		"succeeded", res.Succeeded, "failed", res.Failed, "skipped", res.Skipped)
	return res, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

func (s *Service) dispatch(ctx context.Context, m *domain.ScheduledMessage) outcome {
	claimed, err := s.messages.ClaimForSending(ctx, m.ID)
	if err != nil {
		logger.Error("claim failed", "message_id", m.ID, "error", err)
		return outcomeSkipped
	}
	if !claimed {
		return outcomeSkipped
	}

	receipt, sendErr := s.sender.Send(ctx, delivery.Message{
		MessageID: m.ID,
		AccountID: m.AccountID,
		Channel:   m.Channel,
		Recipient: m.Recipient,
		Subject:   m.Subject,
		Body:      m.Body,
	})
	if sendErr != nil {
		// The tick context may already be cancelled; the outcome must still be stored.
		if err := s.messages.MarkFailed(context.WithoutCancel(ctx), m.ID, domain.MessageSending, sendErr.Error()); err != nil {
			logger.Error("mark failed", "message_id", m.ID, "error", err)
		}
		logger.Warn("message delivery failed", "message_id", m.ID, "channel", m.Channel, "error", sendErr)
		return outcomeFailed
	}

	if _, err := s.messages.MarkSent(context.WithoutCancel(ctx), m.ID, receipt.ProviderMessageID); err != nil {
		logger.Error("mark sent", "message_id", m.ID, "error", err)
		return outcomeFailed
	}
	if m.AutomationID != nil {
		if err := s.automations.IncrementCounter(context.WithoutCancel(ctx), m.AccountID, *m.AutomationID, domain.CounterSent); err != nil {
			logger.Warn("sent counter increment failed", "automation_id", *m.AutomationID, "error", err)
		}
	}
	return outcomeSent
}

// TestRequest describes an immediate test send of an automation.
type TestRequest struct {
	Recipient domain.Recipient
	// BookingID renders against that booking's current snapshot.
	BookingID string
	// Snapshot renders against a caller-supplied snapshot. Ignored when
	// BookingID is set.
	Snapshot *domain.EventSnapshot
}

// TestResult is the outcome of a test send.
type TestResult struct {
	Receipt delivery.Receipt `json:"receipt"`
	Subject string           `json:"subject,omitempty"`
	Body    string           `json:"body"`
}

// TestAutomation renders the automation and sends it straight to the given
// recipient. Nothing is stored and no counters move. Delivery errors are
// returned to the caller wrapped in ErrTestDelivery.
func (s *Service) TestAutomation(ctx context.Context, accountID, automationID string, req TestRequest) (*TestResult, error) {
	a, err := s.automations.Get(ctx, accountID, automationID)
	if err != nil {
		return nil, err
	}

	var tplCtx map[string]any
	switch {
	case req.BookingID != "":
		if s.snapshots == nil {
			return nil, ErrSnapshotsUnavailable
		}
		snap, err := s.snapshots.LoadBooking(ctx, accountID, req.BookingID)
		if err != nil {
			return nil, err
		}
		tplCtx = BuildContext(*snap)
	case req.Snapshot != nil:
		tplCtx = BuildContext(*req.Snapshot)
	default:
		tplCtx = SampleContext(s.now())
	}

	res := &TestResult{Body: templating.Render(a.Body, tplCtx)}
	if a.Channel.UsesSubject() {
		res.Subject = templating.Render(a.Subject, tplCtx)
	}

	receipt, err := s.sender.Send(ctx, delivery.Message{
		AccountID: accountID,
		Channel:   a.Channel,
		Recipient: req.Recipient,
		Subject:   res.Subject,
		Body:      res.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTestDelivery, err)
	}
	res.Receipt = receipt
	logger.Info("automation test sent", "automation_id", automationID, "channel", a.Channel)
	return res, nil
}

// Cancel cancels a pending message.
func (s *Service) Cancel(ctx context.Context, accountID, messageID string) (*domain.ScheduledMessage, error) {
	return s.messages.Cancel(ctx, accountID, messageID)
}

// dedupKey identifies "this automation already fired for this entity and
// trigger". Events with no booking or tenant id are never de-duplicated.
func dedupKey(automationID string, s domain.EventSnapshot, trigger domain.TriggerType) string {
	entity := s.BookingID
	if entity == "" {
		entity = s.TenantID
	}
	if entity == "" {
		return ""
	}
	return automationID + ":" + entity + ":" + string(trigger)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
