package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/service/message"
)

var now = time.Now

// MessageRepo implements message.Repository in memory. Transition holds the
// lock across compare and write, giving the same guarantee as the
// conditional UPDATE in Postgres.
type MessageRepo struct {
	mu    sync.Mutex
	items map[string]*domain.ScheduledMessage
	dedup map[string]string // dedup key -> message id
}

// NewMessageRepo creates an empty in-memory message repository.
func NewMessageRepo() *MessageRepo {
	return &MessageRepo{
		items: make(map[string]*domain.ScheduledMessage),
		dedup: make(map[string]string),
	}
}

func cloneMessage(m *domain.ScheduledMessage) *domain.ScheduledMessage {
	cp := *m
	return &cp
}

func (r *MessageRepo) Create(_ context.Context, m *domain.ScheduledMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.DedupKey != "" {
		if _, exists := r.dedup[m.DedupKey]; exists {
			return message.ErrDuplicate
		}
		r.dedup[m.DedupKey] = m.ID
	}
	cp := cloneMessage(m)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now()
		cp.UpdatedAt = cp.CreatedAt
	}
	r.items[cp.ID] = cp
	return nil
}

func (r *MessageRepo) Get(_ context.Context, accountID, id string) (*domain.ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.AccountID != accountID {
		return nil, message.ErrNotFound
	}
	return cloneMessage(m), nil
}

func (r *MessageRepo) List(_ context.Context, accountID string, f message.ListFilter) ([]domain.ScheduledMessage, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ScheduledMessage
	for _, m := range r.items {
		if m.AccountID != accountID {
			continue
		}
		if f.Status != "" && string(m.Status) != f.Status {
			continue
		}
		if f.BookingID != "" && (m.BookingID == nil || *m.BookingID != f.BookingID) {
			continue
		}
		if f.AutomationID != "" && (m.AutomationID == nil || *m.AutomationID != f.AutomationID) {
			continue
		}
		out = append(out, *cloneMessage(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.After(out[j].ScheduledFor) })
	return page(out, f.Offset, f.Limit), len(out), nil
}

func (r *MessageRepo) ListDue(_ context.Context, at time.Time, limit int) ([]domain.ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ScheduledMessage
	for _, m := range r.items {
		if m.IsDue(at) {
			out = append(out, *cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MessageRepo) Transition(_ context.Context, id string, from, to domain.MessageStatus, f message.TransitionFields) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.Status != from {
		return false, nil
	}
	at := f.At
	if at.IsZero() {
		at = now()
	}
	m.Status = to
	m.UpdatedAt = at
	switch to {
	case domain.MessageSent:
		m.SentAt = &at
		m.ProviderMessageID = f.ProviderMessageID
	case domain.MessageDelivered:
		m.DeliveredAt = &at
	case domain.MessageFailed:
		m.ErrorMessage = f.ErrorMessage
	}
	return true, nil
}

func (r *MessageRepo) MarkEngagement(_ context.Context, accountID, id string, event domain.EngagementEvent, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok || m.AccountID != accountID {
		return false, message.ErrNotFound
	}
	if m.Status != domain.MessageSent && m.Status != domain.MessageDelivered {
		return false, nil
	}
	switch event {
	case domain.EventOpened:
		if m.OpenedAt != nil {
			return false, nil
		}
		m.OpenedAt = &at
	case domain.EventClicked:
		if m.ClickedAt != nil {
			return false, nil
		}
		m.ClickedAt = &at
	default:
		return false, nil
	}
	return true, nil
}

func (r *MessageRepo) FailStale(_ context.Context, cutoff time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.items {
		if m.Status == domain.MessageSending && m.UpdatedAt.Before(cutoff) {
			m.Status = domain.MessageFailed
			m.ErrorMessage = reason
			m.UpdatedAt = now()
			n++
		}
	}
	return n, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
