package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmorell/launchdeck/internal/metrics"
	"github.com/tmorell/launchdeck/internal/tenant"
	"github.com/tmorell/launchdeck/internal/traces"
)

// Event describes a completed lifecycle transition, for observers such as
// the realtime hub.
type Event struct {
	TenantID string `json:"tenantId"`
	Group    string `json:"group"`
	Plugin   string `json:"plugin"`
	Action   string `json:"action"` // "installed", "updated", "uninstalled"
}

// EventSink receives lifecycle events. Implementations must not block.
type EventSink interface {
	PluginEvent(ev Event)
}

// Manager is the integration runtime facade. For every (group, plugin)
// pair it synthesizes an operation set bound to that definition and to
// the tenant store.
type Manager struct {
	registry   *Registry
	tenants    tenant.Store
	dispatcher *dispatcher
	events     EventSink
	logger     *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithEventSink wires an observer for completed lifecycle transitions.
func WithEventSink(sink EventSink) ManagerOption {
	return func(m *Manager) { m.events = sink }
}

// NewManager creates a manager over a registry and tenant store.
func NewManager(reg *Registry, tenants tenant.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:   reg,
		tenants:    tenants,
		dispatcher: &dispatcher{logger: logger},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the manager's read-only registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Ops resolves the operation set for one integration. Unknown group or
// plugin keys fail here, before any tenant lookup.
func (m *Manager) Ops(groupKey, pluginKey string) (*Operations, error) {
	g, def, err := m.registry.definition(groupKey, pluginKey)
	if err != nil {
		return nil, err
	}
	return &Operations{m: m, group: g, def: def}, nil
}

// Operations is the synthesized operation set for one (group, plugin) pair.
type Operations struct {
	m     *Manager
	group *Group
	def   *Definition
}

// UpdateInput carries a config write. Enabled, when set, wins over the
// inferred flag.
type UpdateInput struct {
	Config  map[string]any `json:"config"`
	Enabled *bool          `json:"enabled,omitempty"`
}

// IsInstalled reports whether the integration is enabled for the tenant.
// A missing settings entry reads as false; a missing tenant is an error.
func (o *Operations) IsInstalled(ctx context.Context, tenantID string) (bool, error) {
	t, err := o.m.tenants.Get(ctx, tenantID)
	if err != nil {
		return false, err
	}
	st, ok := t.Settings.Plugins.State(o.group.Key, o.def.Key)
	if !ok {
		return false, nil
	}
	return st.Enabled, nil
}

// Update validates and persists a new config for the tenant, then runs the
// lifecycle dispatcher with the before/after enabled states. The settings
// write is authoritative: hook failures after it are logged, not returned.
func (o *Operations) Update(ctx context.Context, tenantID string, in UpdateInput) (tenant.PluginState, error) {
	ctx, span := traces.StartSpan(ctx, "plugin.update",
		traces.TenantID(tenantID),
		traces.PluginKey(o.group.Key, o.def.Key),
	)
	defer span.End()

	st, err := o.update(ctx, tenantID, in)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.PluginOpsTotal.WithLabelValues("update", result).Inc()
	return st, err
}

func (o *Operations) update(ctx context.Context, tenantID string, in UpdateInput) (tenant.PluginState, error) {
	t, err := o.m.tenants.Get(ctx, tenantID)
	if err != nil {
		return tenant.PluginState{}, err
	}
	prev, _ := t.Settings.Plugins.State(o.group.Key, o.def.Key)

	config := in.Config
	if config == nil {
		// Update without a config keeps the stored one.
		config = prev.Config
	}
	if config == nil {
		config = map[string]any{}
	}

	if err := o.def.ValidateConfig(config); err != nil {
		return tenant.PluginState{}, err
	}
	if o.def.Hooks.OnValidate != nil {
		ok, err := o.def.Hooks.OnValidate(ctx, tenantID, config)
		if err != nil {
			return tenant.PluginState{}, fmt.Errorf("plugin %s validation: %w", o.def.Key, err)
		}
		if !ok {
			return tenant.PluginState{}, &RejectedError{Plugin: o.def.Key}
		}
	}

	enabled := o.resolveEnabled(in, config, prev.Enabled)

	next := tenant.PluginState{Enabled: enabled, Config: config}
	if _, err := o.m.tenants.SetPluginState(ctx, tenantID, o.group.Key, o.def.Key, next); err != nil {
		return tenant.PluginState{}, fmt.Errorf("persist plugin state: %w", err)
	}

	o.dispatch(ctx, tenantID, prev.Enabled, enabled, config)
	return next, nil
}

// Activate enables the integration with its stored config unchanged. First
// activation drives OnInstall through the dispatcher.
func (o *Operations) Activate(ctx context.Context, tenantID string) error {
	enabled := true
	_, err := o.Update(ctx, tenantID, UpdateInput{Enabled: &enabled})
	return err
}

// Deactivate disables the integration, preserving its stored config. The
// entry is never removed. Deactivating an already-disabled integration
// succeeds without invoking any hook.
func (o *Operations) Deactivate(ctx context.Context, tenantID string) error {
	ctx, span := traces.StartSpan(ctx, "plugin.deactivate",
		traces.TenantID(tenantID),
		traces.PluginKey(o.group.Key, o.def.Key),
	)
	defer span.End()

	t, err := o.m.tenants.Get(ctx, tenantID)
	if err != nil {
		metrics.PluginOpsTotal.WithLabelValues("deactivate", "error").Inc()
		return err
	}
	prev, _ := t.Settings.Plugins.State(o.group.Key, o.def.Key)

	config := prev.Config
	if config == nil {
		config = map[string]any{}
	}
	next := tenant.PluginState{Enabled: false, Config: config}
	if _, err := o.m.tenants.SetPluginState(ctx, tenantID, o.group.Key, o.def.Key, next); err != nil {
		metrics.PluginOpsTotal.WithLabelValues("deactivate", "error").Inc()
		return fmt.Errorf("persist plugin state: %w", err)
	}

	o.dispatch(ctx, tenantID, prev.Enabled, false, config)
	metrics.PluginOpsTotal.WithLabelValues("deactivate", "ok").Inc()
	return nil
}

// Call invokes a custom integration method by name with the tenant's
// stored config. Manager-owned operation names are never dispatched here.
func (o *Operations) Call(ctx context.Context, name, tenantID string, args map[string]any) (any, error) {
	if _, reserved := reservedMethods[name]; reserved {
		return nil, fmt.Errorf("%w: %q", ErrMethodNotFound, name)
	}
	fn, ok := o.def.Methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on plugin %s", ErrMethodNotFound, name, o.def.Key)
	}

	ctx, span := traces.StartSpan(ctx, "plugin.call",
		traces.TenantID(tenantID),
		traces.PluginKey(o.group.Key, o.def.Key),
		traces.Operation(name),
	)
	defer span.End()

	t, err := o.m.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	st, _ := t.Settings.Plugins.State(o.group.Key, o.def.Key)
	return fn(ctx, tenantID, st.Config, args)
}

// ReceiveWebhook forwards an inbound payload to the integration's webhook
// hook, if it declares one.
func (o *Operations) ReceiveWebhook(ctx context.Context, tenantID string, payload []byte) error {
	if o.def.Hooks.OnReceiveWebhook == nil {
		return fmt.Errorf("%w: %s", ErrNoWebhook, o.def.Key)
	}
	if _, err := o.m.tenants.Get(ctx, tenantID); err != nil {
		return err
	}
	return o.def.Hooks.OnReceiveWebhook(ctx, tenantID, payload)
}

// resolveEnabled computes the new enabled flag. An explicit flag wins.
// Otherwise the flag is inferred true when every schema field is present
// and non-empty; with nothing to infer from, the previous value is kept.
func (o *Operations) resolveEnabled(in UpdateInput, config map[string]any, prev bool) bool {
	if in.Enabled != nil {
		return *in.Enabled
	}
	if len(o.def.Schema) == 0 {
		return prev
	}
	for name := range o.def.Schema {
		v, ok := config[name]
		if !ok || v == nil {
			return prev
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return prev
		}
	}
	return true
}

func (o *Operations) dispatch(ctx context.Context, tenantID string, before, after bool, config map[string]any) {
	action := o.m.dispatcher.Dispatch(ctx, o.def, tenantID, before, after, config)
	if action != "" && o.m.events != nil {
		o.m.events.PluginEvent(Event{
			TenantID: tenantID,
			Group:    o.group.Key,
			Plugin:   o.def.Key,
			Action:   action,
		})
	}
}
