package member

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory member/invitation store for demo/development.
// It doubles as a usage counter over its own rows so the quota provider can
// run without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	members map[string]*Member     // by ID
	invites map[string]*Invitation // by ID
}

// NewMemoryStore creates a new in-memory member store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members: make(map[string]*Member),
		invites: make(map[string]*Invitation),
	}
}

func (m *MemoryStore) CreateMember(_ context.Context, mem *Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.members {
		if existing.TenantID == mem.TenantID && existing.Email == mem.Email {
			return ErrDuplicate
		}
	}
	cp := *mem
	m.members[mem.ID] = &cp
	return nil
}

func (m *MemoryStore) GetMember(_ context.Context, id string) (*Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *MemoryStore) ListMembers(_ context.Context, tenantID string) ([]*Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Member
	for _, mem := range m.members {
		if mem.TenantID == tenantID {
			cp := *mem
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteMember(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[id]; !ok {
		return ErrMemberNotFound
	}
	delete(m.members, id)
	return nil
}

func (m *MemoryStore) CreateInvitation(_ context.Context, inv *Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.invites[inv.ID] = &cp
	return nil
}

func (m *MemoryStore) GetInvitationByToken(_ context.Context, token string) (*Invitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invites {
		if inv.Token == token {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrInviteNotFound
}

func (m *MemoryStore) ListInvitations(_ context.Context, tenantID string) ([]*Invitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Invitation
	for _, inv := range m.invites {
		if inv.TenantID == tenantID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateInvitation(_ context.Context, inv *Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[inv.ID]; !ok {
		return ErrInviteNotFound
	}
	cp := *inv
	m.invites[inv.ID] = &cp
	return nil
}

// Count implements the quota usage-counter contract over the store's own
// rows. Members count regardless of window; invitations respect it. Tables
// the store does not own report zero usage.
func (m *MemoryStore) Count(_ context.Context, table, tenantID string, from, to *time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inWindow := func(at time.Time) bool {
		if from != nil && at.Before(*from) {
			return false
		}
		if to != nil && at.After(*to) {
			return false
		}
		return true
	}

	var count int64
	switch table {
	case "members":
		for _, mem := range m.members {
			if mem.TenantID == tenantID && inWindow(mem.CreatedAt) {
				count++
			}
		}
	case "invitations":
		for _, inv := range m.invites {
			if inv.TenantID == tenantID && inWindow(inv.CreatedAt) {
				count++
			}
		}
	}
	return count, nil
}

var _ Store = (*MemoryStore)(nil)
