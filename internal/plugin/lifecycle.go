package plugin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmorell/launchdeck/internal/metrics"
)

// dispatcher decides, from the before/after enabled flags, which lifecycle
// hooks to run after a state change has been persisted.
//
// Transitions:
//
//	disabled -> enabled   OnInstall, then OnUpdate
//	enabled  -> enabled   OnUpdate
//	enabled  -> disabled  OnUninstall
//	disabled -> disabled  nothing
//
// Hooks run best-effort: the settings write has already happened, so a
// failing hook is logged and counted but never propagated.
type dispatcher struct {
	logger *slog.Logger
}

// Dispatch runs the hooks for one transition and returns the action name
// ("installed", "updated", "uninstalled") or "" when nothing fired.
func (d *dispatcher) Dispatch(ctx context.Context, def *Definition, tenantID string, before, after bool, config map[string]any) string {
	switch {
	case !before && after:
		d.run(ctx, def.Key, tenantID, "onInstall", func() error {
			if def.Hooks.OnInstall == nil {
				return nil
			}
			return def.Hooks.OnInstall(ctx, tenantID)
		})
		d.run(ctx, def.Key, tenantID, "onUpdate", func() error {
			if def.Hooks.OnUpdate == nil {
				return nil
			}
			return def.Hooks.OnUpdate(ctx, tenantID, config)
		})
		return "installed"

	case before && after:
		d.run(ctx, def.Key, tenantID, "onUpdate", func() error {
			if def.Hooks.OnUpdate == nil {
				return nil
			}
			return def.Hooks.OnUpdate(ctx, tenantID, config)
		})
		return "updated"

	case before && !after:
		d.run(ctx, def.Key, tenantID, "onUninstall", func() error {
			if def.Hooks.OnUninstall == nil {
				return nil
			}
			return def.Hooks.OnUninstall(ctx, tenantID)
		})
		return "uninstalled"
	}
	return ""
}

// run executes one hook, converting panics to errors so a misbehaving
// integration cannot take down the request.
func (d *dispatcher) run(ctx context.Context, pluginKey, tenantID, hook string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err != nil {
		metrics.PluginHookFailuresTotal.WithLabelValues(pluginKey, hook).Inc()
		d.logger.Error("plugin hook failed",
			"plugin", pluginKey,
			"hook", hook,
			"tenant_id", tenantID,
			"error", err,
		)
	}
}
