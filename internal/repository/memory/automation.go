package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/service/automation"
)

// AutomationRepo implements automation.Repository in memory.
type AutomationRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Automation // keyed by id
}

// NewAutomationRepo creates an empty in-memory automation repository.
func NewAutomationRepo() *AutomationRepo {
	return &AutomationRepo{items: make(map[string]*domain.Automation)}
}

func cloneAutomation(a *domain.Automation) *domain.Automation {
	cp := *a
	if a.PropertyIDs != nil {
		cp.PropertyIDs = append([]string(nil), a.PropertyIDs...)
	}
	return &cp
}

func (r *AutomationRepo) lookup(accountID, id string) (*domain.Automation, error) {
	a, ok := r.items[id]
	if !ok || a.AccountID != accountID {
		return nil, automation.ErrNotFound
	}
	return a, nil
}

func (r *AutomationRepo) Get(_ context.Context, accountID, id string) (*domain.Automation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.lookup(accountID, id)
	if err != nil {
		return nil, err
	}
	return cloneAutomation(a), nil
}

func (r *AutomationRepo) List(_ context.Context, accountID string, f automation.ListFilter) ([]domain.Automation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Automation
	for _, a := range r.items {
		if a.AccountID != accountID {
			continue
		}
		if f.Trigger != "" && string(a.Trigger) != f.Trigger {
			continue
		}
		if f.Channel != "" && string(a.Channel) != f.Channel {
			continue
		}
		if f.Active != nil && a.Active != *f.Active {
			continue
		}
		out = append(out, *cloneAutomation(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Offset, f.Limit), len(out), nil
}

func (r *AutomationRepo) Create(_ context.Context, a *domain.Automation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := cloneAutomation(a)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now()
	}
	cp.UpdatedAt = cp.CreatedAt
	r.items[cp.ID] = cp
	a.CreatedAt, a.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return nil
}

func (r *AutomationRepo) Update(_ context.Context, a *domain.Automation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, err := r.lookup(a.AccountID, a.ID)
	if err != nil {
		return err
	}
	cp := cloneAutomation(a)
	cp.TotalSent, cp.TotalOpened, cp.TotalClicked = cur.TotalSent, cur.TotalOpened, cur.TotalClicked
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = now()
	r.items[a.ID] = cp
	return nil
}

func (r *AutomationRepo) Delete(_ context.Context, accountID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.lookup(accountID, id); err != nil {
		return err
	}
	delete(r.items, id)
	return nil
}

func (r *AutomationRepo) Toggle(_ context.Context, accountID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.lookup(accountID, id)
	if err != nil {
		return false, err
	}
	a.Active = !a.Active
	a.UpdatedAt = now()
	return a.Active, nil
}

func (r *AutomationRepo) Increment(_ context.Context, accountID, id string, counter domain.AnalyticsCounter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.lookup(accountID, id)
	if err != nil {
		return err
	}
	switch counter {
	case domain.CounterSent:
		a.TotalSent++
	case domain.CounterOpened:
		a.TotalOpened++
	case domain.CounterClicked:
		a.TotalClicked++
	default:
		return automation.ErrInvalidCounter
	}
	return nil
}

func (r *AutomationRepo) FindActive(_ context.Context, accountID string, trigger domain.TriggerType) ([]domain.Automation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Automation
	for _, a := range r.items {
		if a.AccountID == accountID && a.Trigger == trigger && a.Active {
			out = append(out, *cloneAutomation(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Properties is an in-memory PropertyOwnership keyed by account.
type Properties struct {
	mu    sync.RWMutex
	owned map[string]map[string]bool
}

// NewProperties creates an empty ownership table.
func NewProperties() *Properties {
	return &Properties{owned: make(map[string]map[string]bool)}
}

// Add records that the account owns the given properties.
func (p *Properties) Add(accountID string, ids ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.owned[accountID] == nil {
		p.owned[accountID] = make(map[string]bool)
	}
	for _, id := range ids {
		p.owned[accountID][id] = true
	}
}

func (p *Properties) OwnedPropertyIDs(_ context.Context, accountID string, ids []string) (map[string]bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if p.owned[accountID][id] {
			out[id] = true
		}
	}
	return out, nil
}
