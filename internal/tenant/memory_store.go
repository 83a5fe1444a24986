package tenant

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory tenant store for demo/development.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant // by ID
	slugs   map[string]string  // slug -> ID
}

// NewMemoryStore creates a new in-memory tenant store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]*Tenant),
		slugs:   make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.slugs[t.Slug]; exists {
		return ErrSlugTaken
	}

	cp := *t
	cp.Settings = t.Settings.Clone()
	m.tenants[t.ID] = &cp
	m.slugs[t.Slug] = t.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}
	cp := *t
	cp.Settings = t.Settings.Clone()
	return &cp, nil
}

func (m *MemoryStore) GetBySlug(_ context.Context, slug string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.slugs[slug]
	if !ok {
		return nil, ErrTenantNotFound
	}
	t := m.tenants[id]
	cp := *t
	cp.Settings = t.Settings.Clone()
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[t.ID]; !ok {
		return ErrTenantNotFound
	}
	cp := *t
	cp.Settings = t.Settings.Clone()
	m.tenants[t.ID] = &cp
	return nil
}

func (m *MemoryStore) SetPluginState(_ context.Context, tenantID, group, plugin string, state PluginState) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}

	if t.Settings.Plugins == nil {
		t.Settings.Plugins = make(PluginSettings)
	}
	if t.Settings.Plugins[group] == nil {
		t.Settings.Plugins[group] = make(map[string]PluginState)
	}
	cfg := make(map[string]any, len(state.Config))
	for k, v := range state.Config {
		cfg[k] = v
	}
	t.Settings.Plugins[group][plugin] = PluginState{Enabled: state.Enabled, Config: cfg}
	t.UpdatedAt = time.Now()

	cp := *t
	cp.Settings = t.Settings.Clone()
	return &cp, nil
}

var _ Store = (*MemoryStore)(nil)
