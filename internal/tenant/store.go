package tenant

import "context"

// Store persists tenant data.
//
// SetPluginState merges a single integration's state into the settings
// document without touching sibling entries or any other settings key.
type Store interface {
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	SetPluginState(ctx context.Context, tenantID, group, plugin string, state PluginState) (*Tenant, error)
}
