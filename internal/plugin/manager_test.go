package plugin

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tmorell/launchdeck/internal/tenant"
)

// hookCounts records lifecycle hook invocations for assertions.
type hookCounts struct {
	install   int
	update    int
	uninstall int
}

func newTestManager(t *testing.T, counts *hookCounts) (*Manager, tenant.Store) {
	t.Helper()

	pager := &Definition{
		Key:  "pager",
		Name: "Pager",
		Schema: Schema{
			"apiKey":     {Type: FieldText, Label: "API key", Required: true},
			"escalate":   {Type: FieldBoolean, Label: "Escalate"},
			"maxPerHour": {Type: FieldNumber, Label: "Max pages per hour"},
		},
		Hooks: Hooks{
			OnInstall: func(ctx context.Context, tenantID string) error {
				counts.install++
				return nil
			},
			OnUpdate: func(ctx context.Context, tenantID string, config map[string]any) error {
				counts.update++
				return nil
			},
			OnUninstall: func(ctx context.Context, tenantID string) error {
				counts.uninstall++
				return nil
			},
		},
		Methods: map[string]MethodFunc{
			"page": func(ctx context.Context, tenantID string, config map[string]any, args map[string]any) (any, error) {
				return map[string]any{"paged": true, "key": config["apiKey"]}, nil
			},
		},
	}

	heartbeat := &Definition{Key: "heartbeat", Name: "Heartbeat"} // no schema, no hooks

	reg := MustNewRegistry(
		Group{
			Key:     "alerting",
			Name:    "Alerting",
			Plugins: map[string]*Definition{"pager": pager, "heartbeat": heartbeat},
		},
		Group{
			Key:     "misc",
			Name:    "Misc",
			Plugins: map[string]*Definition{"heartbeat": {Key: "heartbeat", Name: "Heartbeat"}},
		},
	)

	store := tenant.NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.Create(context.Background(), &tenant.Tenant{
		ID:        "ten_1",
		Name:      "Acme",
		Slug:      "acme",
		Status:    tenant.StatusActive,
		Settings:  tenant.Settings{Plugins: reg.DefaultSettings(), Locale: "en"},
		CreatedAt: now,
		UpdatedAt: now,
	}))

	return NewManager(reg, store, slog.Default()), store
}

func TestOps_UnknownKeys(t *testing.T) {
	m, _ := newTestManager(t, &hookCounts{})

	_, err := m.Ops("nope", "pager")
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, err = m.Ops("alerting", "nope")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestIsInstalled_DefaultsAndMissingTenant(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &hookCounts{})
	ops, err := m.Ops("alerting", "pager")
	require.NoError(t, err)

	installed, err := ops.IsInstalled(ctx, "ten_1")
	require.NoError(t, err)
	assert.False(t, installed)

	_, err = ops.IsInstalled(ctx, "ten_missing")
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

func TestActivateDeactivate_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &hookCounts{})
	ops, _ := m.Ops("alerting", "heartbeat")

	require.NoError(t, ops.Activate(ctx, "ten_1"))
	installed, err := ops.IsInstalled(ctx, "ten_1")
	require.NoError(t, err)
	assert.True(t, installed)

	require.NoError(t, ops.Deactivate(ctx, "ten_1"))
	installed, err = ops.IsInstalled(ctx, "ten_1")
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestLifecycle_FirstActivationInstallsOnce(t *testing.T) {
	ctx := context.Background()
	counts := &hookCounts{}
	m, _ := newTestManager(t, counts)
	ops, _ := m.Ops("alerting", "pager")

	_, err := ops.Update(ctx, "ten_1", UpdateInput{
		Config:  map[string]any{"apiKey": "k-123"},
		Enabled: boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.install)
	assert.Equal(t, 1, counts.update)

	// Activating again while enabled only re-runs OnUpdate.
	require.NoError(t, ops.Activate(ctx, "ten_1"))
	assert.Equal(t, 1, counts.install)
	assert.Equal(t, 2, counts.update)
	assert.Equal(t, 0, counts.uninstall)
}

func TestLifecycle_DeactivateRunsUninstallOnce(t *testing.T) {
	ctx := context.Background()
	counts := &hookCounts{}
	m, _ := newTestManager(t, counts)
	ops, _ := m.Ops("alerting", "pager")

	_, err := ops.Update(ctx, "ten_1", UpdateInput{
		Config:  map[string]any{"apiKey": "k-123"},
		Enabled: boolPtr(true),
	})
	require.NoError(t, err)

	require.NoError(t, ops.Deactivate(ctx, "ten_1"))
	assert.Equal(t, 1, counts.uninstall)

	// Deactivating an already-disabled integration is hook-free success.
	require.NoError(t, ops.Deactivate(ctx, "ten_1"))
	assert.Equal(t, 1, counts.uninstall)
	assert.Equal(t, 1, counts.install)
}

func TestUpdate_SchemaViolationLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	counts := &hookCounts{}
	m, store := newTestManager(t, counts)
	ops, _ := m.Ops("alerting", "pager")

	_, err := ops.Update(ctx, "ten_1", UpdateInput{
		Config:  map[string]any{"apiKey": "k-123", "escalate": true},
		Enabled: boolPtr(true),
	})
	require.NoError(t, err)

	// Missing required apiKey.
	_, err = ops.Update(ctx, "ten_1", UpdateInput{Config: map[string]any{"escalate": false}})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "pager", vErr.Plugin)
	assert.Equal(t, "apiKey", vErr.Field)
	assert.Contains(t, vErr.Error(), "invalid configuration for plugin pager")

	tn, err := store.Get(ctx, "ten_1")
	require.NoError(t, err)
	st, ok := tn.Settings.Plugins.State("alerting", "pager")
	require.True(t, ok)
	assert.True(t, st.Enabled)
	assert.Equal(t, "k-123", st.Config["apiKey"])
	assert.Equal(t, true, st.Config["escalate"])
}

func TestUpdate_WrongFieldType(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &hookCounts{})
	ops, _ := m.Ops("alerting", "pager")

	_, err := ops.Update(ctx, "ten_1", UpdateInput{
		Config: map[string]any{"apiKey": "k", "maxPerHour": "ten"},
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "maxPerHour", vErr.Field)
}

func TestUpdate_OnValidateRejection(t *testing.T) {
	ctx := context.Background()
	rejecting := &Definition{
		Key:    "strict",
		Name:   "Strict",
		Schema: Schema{"token": {Type: FieldText, Label: "Token", Required: true}},
		Hooks: Hooks{
			OnValidate: func(ctx context.Context, tenantID string, config map[string]any) (bool, error) {
				return false, nil
			},
			OnInstall: func(ctx context.Context, tenantID string) error {
				t.Fatal("OnInstall must not run after a rejected validation")
				return nil
			},
		},
	}
	reg := MustNewRegistry(Group{Key: "g", Name: "G", Plugins: map[string]*Definition{"strict": rejecting}})
	store := tenant.NewMemoryStore()
	require.NoError(t, store.Create(ctx, &tenant.Tenant{ID: "ten_1", Slug: "acme",
		Settings: tenant.Settings{Plugins: reg.DefaultSettings()}}))
	m := NewManager(reg, store, slog.Default())

	ops, _ := m.Ops("g", "strict")
	_, err := ops.Update(ctx, "ten_1", UpdateInput{
		Config:  map[string]any{"token": "t"},
		Enabled: boolPtr(true),
	})
	var rErr *RejectedError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, "validation failed for plugin strict", rErr.Error())

	tn, _ := store.Get(ctx, "ten_1")
	st, _ := tn.Settings.Plugins.State("g", "strict")
	assert.False(t, st.Enabled)
	assert.Empty(t, st.Config)
}

func TestUpdate_SiblingIsolation(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, &hookCounts{})

	pager, _ := m.Ops("alerting", "pager")
	_, err := pager.Update(ctx, "ten_1", UpdateInput{
		Config:  map[string]any{"apiKey": "keep-me"},
		Enabled: boolPtr(true),
	})
	require.NoError(t, err)

	// Same group sibling.
	hb, _ := m.Ops("alerting", "heartbeat")
	require.NoError(t, hb.Activate(ctx, "ten_1"))

	// Different group.
	misc, _ := m.Ops("misc", "heartbeat")
	require.NoError(t, misc.Activate(ctx, "ten_1"))

	tn, _ := store.Get(ctx, "ten_1")
	st, ok := tn.Settings.Plugins.State("alerting", "pager")
	require.True(t, ok)
	assert.True(t, st.Enabled)
	assert.Equal(t, "keep-me", st.Config["apiKey"])
	assert.Equal(t, "en", tn.Settings.Locale)
}

func TestUpdate_InferredEnabled(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &hookCounts{})
	ops, _ := m.Ops("alerting", "pager")

	// All schema fields present and non-empty: inferred enabled.
	_, err := ops.Update(ctx, "ten_1", UpdateInput{
		Config: map[string]any{"apiKey": "k", "escalate": false, "maxPerHour": float64(10)},
	})
	require.NoError(t, err)
	installed, _ := ops.IsInstalled(ctx, "ten_1")
	assert.True(t, installed)

	// Partial config without an explicit flag keeps the previous value.
	_, err = ops.Update(ctx, "ten_1", UpdateInput{Config: map[string]any{"apiKey": "k2"}})
	require.NoError(t, err)
	installed, _ = ops.IsInstalled(ctx, "ten_1")
	assert.True(t, installed)
}

func TestUpdate_HookFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	flaky := &Definition{
		Key:  "flaky",
		Name: "Flaky",
		Hooks: Hooks{
			OnInstall: func(ctx context.Context, tenantID string) error {
				return errors.New("downstream unreachable")
			},
			OnUpdate: func(ctx context.Context, tenantID string, config map[string]any) error {
				panic("boom")
			},
		},
	}
	reg := MustNewRegistry(Group{Key: "g", Name: "G", Plugins: map[string]*Definition{"flaky": flaky}})
	store := tenant.NewMemoryStore()
	require.NoError(t, store.Create(ctx, &tenant.Tenant{ID: "ten_1", Slug: "acme",
		Settings: tenant.Settings{Plugins: reg.DefaultSettings()}}))
	m := NewManager(reg, store, slog.Default())

	ops, _ := m.Ops("g", "flaky")
	require.NoError(t, ops.Activate(ctx, "ten_1"))

	// The persisted state is authoritative despite both hooks failing.
	installed, err := ops.IsInstalled(ctx, "ten_1")
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestCall_CustomMethod(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, &hookCounts{})
	ops, _ := m.Ops("alerting", "pager")

	_, err := ops.Update(ctx, "ten_1", UpdateInput{
		Config:  map[string]any{"apiKey": "k-9"},
		Enabled: boolPtr(true),
	})
	require.NoError(t, err)

	result, err := ops.Call(ctx, "page", "ten_1", map[string]any{"who": "oncall"})
	require.NoError(t, err)
	m2, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "k-9", m2["key"])

	// Manager-owned names are never dispatched as custom methods.
	_, err = ops.Call(ctx, "update", "ten_1", nil)
	assert.ErrorIs(t, err, ErrMethodNotFound)

	_, err = ops.Call(ctx, "missing", "ten_1", nil)
	assert.ErrorIs(t, err, ErrMethodNotFound)
}

func TestCall_SpanCarriesOperationName(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx := context.Background()
	m, _ := newTestManager(t, &hookCounts{})
	ops, _ := m.Ops("alerting", "pager")

	_, err := ops.Call(ctx, "page", "ten_1", nil)
	require.NoError(t, err)

	var found bool
	for _, s := range exporter.GetSpans() {
		if s.Name != "plugin.call" {
			continue
		}
		found = true
		got := map[string]string{}
		for _, kv := range s.Attributes {
			got[string(kv.Key)] = kv.Value.AsString()
		}
		assert.Equal(t, "page", got["operation"])
		assert.Equal(t, "alerting/pager", got["plugin.key"])
		assert.Equal(t, "ten_1", got["tenant.id"])
	}
	require.True(t, found, "expected a plugin.call span")
}

func TestEventSink_ReceivesTransitions(t *testing.T) {
	ctx := context.Background()

	var events []Event
	sink := eventSinkFunc(func(ev Event) { events = append(events, ev) })

	reg := MustNewRegistry(Group{Key: "g", Name: "G",
		Plugins: map[string]*Definition{"p": {Key: "p", Name: "P"}}})
	store := tenant.NewMemoryStore()
	require.NoError(t, store.Create(ctx, &tenant.Tenant{ID: "ten_1", Slug: "acme",
		Settings: tenant.Settings{Plugins: reg.DefaultSettings()}}))
	m := NewManager(reg, store, slog.Default(), WithEventSink(sink))

	ops, _ := m.Ops("g", "p")
	require.NoError(t, ops.Activate(ctx, "ten_1"))
	require.NoError(t, ops.Deactivate(ctx, "ten_1"))
	require.NoError(t, ops.Deactivate(ctx, "ten_1")) // no transition, no event

	require.Len(t, events, 2)
	assert.Equal(t, "installed", events[0].Action)
	assert.Equal(t, "uninstalled", events[1].Action)
}

type eventSinkFunc func(Event)

func (f eventSinkFunc) PluginEvent(ev Event) { f(ev) }

func boolPtr(b bool) *bool { return &b }
