// Package tenant provides multi-tenancy for the Launchdeck platform.
package tenant

import (
	"errors"
	"time"
)

// Errors
var (
	ErrTenantNotFound = errors.New("tenant: not found")
	ErrSlugTaken      = errors.New("tenant: slug already taken")
)

// Status represents a tenant's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// PluginState is one integration's per-tenant state, stored inside the
// tenant's settings document under plugins[group][plugin].
type PluginState struct {
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config"`
}

// DefaultPluginState returns the state seeded for every known integration
// when a tenant is created.
func DefaultPluginState() PluginState {
	return PluginState{Enabled: false, Config: map[string]any{}}
}

// PluginSettings maps group key -> plugin key -> state.
type PluginSettings map[string]map[string]PluginState

// State looks up the stored state for a (group, plugin) pair.
func (p PluginSettings) State(group, plugin string) (PluginState, bool) {
	if p == nil {
		return PluginState{}, false
	}
	g, ok := p[group]
	if !ok {
		return PluginState{}, false
	}
	st, ok := g[plugin]
	return st, ok
}

// Clone returns a deep copy. The stored config maps are never shared
// between callers.
func (p PluginSettings) Clone() PluginSettings {
	if p == nil {
		return nil
	}
	out := make(PluginSettings, len(p))
	for gk, group := range p {
		cg := make(map[string]PluginState, len(group))
		for pk, st := range group {
			cfg := make(map[string]any, len(st.Config))
			for k, v := range st.Config {
				cfg[k] = v
			}
			cg[pk] = PluginState{Enabled: st.Enabled, Config: cfg}
		}
		out[gk] = cg
	}
	return out
}

// Settings is the tenant's JSON settings document. Only the plugins
// subtree is owned by the integration runtime; the rest belongs to the
// dashboard and is carried through untouched.
type Settings struct {
	Plugins      PluginSettings `json:"plugins,omitempty"`
	BillingEmail string         `json:"billingEmail,omitempty"`
	Locale       string         `json:"locale,omitempty"`
}

// Clone returns a deep copy of the settings document.
func (s Settings) Clone() Settings {
	out := s
	out.Plugins = s.Plugins.Clone()
	return out
}

// Tenant represents an organisation using the platform.
type Tenant struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Slug              string    `json:"slug"`
	BillingCustomerID string    `json:"billingCustomerId,omitempty"`
	Status            Status    `json:"status"`
	Settings          Settings  `json:"settings"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
