package billing

import (
	"context"
	"sync"
)

// MemorySubscriptionStore is an in-memory subscription store for
// demo/development.
type MemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]*Subscription // by ID
}

// NewMemorySubscriptionStore creates a new in-memory subscription store.
func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{subs: make(map[string]*Subscription)}
}

func (m *MemorySubscriptionStore) Create(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *MemorySubscriptionStore) FirstForTenant(_ context.Context, tenantID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var first *Subscription
	for _, sub := range m.subs {
		if sub.TenantID != tenantID {
			continue
		}
		if first == nil || sub.CreatedAt.Before(first.CreatedAt) {
			first = sub
		}
	}
	if first == nil {
		return nil, ErrNoSubscription
	}
	cp := *first
	return &cp, nil
}

func (m *MemorySubscriptionStore) Update(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[sub.ID]; !ok {
		return ErrNoSubscription
	}
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

var _ SubscriptionStore = (*MemorySubscriptionStore)(nil)

// MemoryPlanStore is an in-memory plan catalog.
type MemoryPlanStore struct {
	mu    sync.RWMutex
	plans map[string]*Plan // by price ID
}

// NewMemoryPlanStore creates a new in-memory plan store.
func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{plans: make(map[string]*Plan)}
}

func (m *MemoryPlanStore) Upsert(_ context.Context, plan *Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := clonePlan(plan)
	m.plans[plan.PriceID] = cp
	return nil
}

func (m *MemoryPlanStore) GetByPriceID(_ context.Context, priceID string) (*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[priceID]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return clonePlan(p), nil
}

func (m *MemoryPlanStore) List(_ context.Context) ([]*Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Plan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, clonePlan(p))
	}
	return out, nil
}

func clonePlan(p *Plan) *Plan {
	cp := *p
	cp.Metadata = make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}

var _ PlanStore = (*MemoryPlanStore)(nil)
