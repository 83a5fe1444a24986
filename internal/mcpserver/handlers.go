package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tmorell/launchdeck/internal/billing"
	"github.com/tmorell/launchdeck/internal/plugin"
	"github.com/tmorell/launchdeck/internal/quota"
)

// Handlers holds the handler functions for each MCP tool, bound directly
// to the local integration runtime and quota provider.
type Handlers struct {
	manager *plugin.Manager
	quotas  *quota.Provider
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(manager *plugin.Manager, quotas *quota.Provider) *Handlers {
	return &Handlers{manager: manager, quotas: quotas}
}

// HandleListIntegrations lists the integration catalog.
func (h *Handlers) HandleListIntegrations(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plugins := h.manager.Registry().ListPlugins(plugin.Filter{
		Group:      req.GetString("group", ""),
		SearchTerm: req.GetString("query", ""),
	})
	if len(plugins) == 0 {
		return mcp.NewToolResultText("No integrations match the given filters."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d integration(s):\n\n", len(plugins))
	for _, p := range plugins {
		fmt.Fprintf(&sb, "%s/%s - %s\n", p.Group, p.Key, p.Name)
		if p.Description != "" {
			fmt.Fprintf(&sb, "  %s\n", p.Description)
		}
		if p.Options.ComingSoon {
			sb.WriteString("  (coming soon, not yet available)\n")
		}
		if len(p.Fields) > 0 {
			sb.WriteString("  Configuration fields:\n")
			for _, f := range p.Fields {
				suffix := ""
				if f.Required {
					suffix = ", required"
				}
				fmt.Fprintf(&sb, "    - %s (%s%s): %s\n", f.Name, f.Type, suffix, f.Label)
			}
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetIntegrationStatus reports whether an integration is enabled.
func (h *Handlers) HandleGetIntegrationStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ops, tenantID, errResult := h.resolve(req)
	if errResult != nil {
		return errResult, nil
	}

	installed, err := ops.IsInstalled(ctx, tenantID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check status: %v", err)), nil
	}
	state := "disabled"
	if installed {
		state = "enabled"
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Integration %s/%s is %s for tenant %s.",
		req.GetString("group", ""), req.GetString("plugin", ""), state, tenantID)), nil
}

// HandleUpdateIntegration validates and persists an integration's config.
func (h *Handlers) HandleUpdateIntegration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ops, tenantID, errResult := h.resolve(req)
	if errResult != nil {
		return errResult, nil
	}

	var config map[string]any
	if raw := req.GetArguments()["config"]; raw != nil {
		if m, ok := raw.(map[string]any); ok {
			config = m
		}
	}

	state, err := ops.Update(ctx, tenantID, plugin.UpdateInput{Config: config})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Update failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Integration updated. Enabled: %v\n", state.Enabled)
	if len(state.Config) > 0 {
		sb.WriteString("Stored configuration fields: ")
		first := true
		for k := range state.Config {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			first = false
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleActivateIntegration enables an integration with stored config.
func (h *Handlers) HandleActivateIntegration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ops, tenantID, errResult := h.resolve(req)
	if errResult != nil {
		return errResult, nil
	}
	if err := ops.Activate(ctx, tenantID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Activation failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Integration %s/%s activated for tenant %s.",
		req.GetString("group", ""), req.GetString("plugin", ""), tenantID)), nil
}

// HandleDeactivateIntegration disables an integration, keeping its config.
func (h *Handlers) HandleDeactivateIntegration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ops, tenantID, errResult := h.resolve(req)
	if errResult != nil {
		return errResult, nil
	}
	if err := ops.Deactivate(ctx, tenantID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Deactivation failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Integration %s/%s deactivated for tenant %s. Configuration was preserved.",
		req.GetString("group", ""), req.GetString("plugin", ""), tenantID)), nil
}

// HandleGetFeatureQuota reports plan quotas for a tenant.
func (h *Handlers) HandleGetFeatureQuota(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID := req.GetString("tenant_id", "")
	if tenantID == "" {
		return mcp.NewToolResultError("tenant_id is required"), nil
	}

	if feature := req.GetString("feature", ""); feature != "" {
		fq, err := h.quotas.GetFeatureQuota(ctx, tenantID, billing.FeatureID(feature))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get quota: %v", err)), nil
		}
		return mcp.NewToolResultText(formatQuota(*fq)), nil
	}

	features, err := h.quotas.GetTenantFeatures(ctx, tenantID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get quotas: %v", err)), nil
	}
	if len(features) == 0 {
		return mcp.NewToolResultText("The tenant's plan has no countable features."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan features for tenant %s:\n\n", tenantID)
	for _, fq := range features {
		sb.WriteString(formatQuota(fq))
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatQuota(fq quota.FeatureQuota) string {
	status := "at capacity"
	if fq.Available {
		status = "available"
	}
	if fq.Quota == nil {
		return fmt.Sprintf("%s: %s", fq.ID, status)
	}
	return fmt.Sprintf("%s: %d of %d used (%.0f%%), %d remaining - %s",
		fq.ID, fq.Quota.Used, fq.Quota.Total, fq.Quota.UsageRate, fq.Quota.Remaining, status)
}

// resolve extracts the common tenant/group/plugin arguments and binds the
// operation set. A non-nil third return is an error result for the LLM.
func (h *Handlers) resolve(req mcp.CallToolRequest) (*plugin.Operations, string, *mcp.CallToolResult) {
	tenantID := req.GetString("tenant_id", "")
	group := req.GetString("group", "")
	pluginKey := req.GetString("plugin", "")
	if tenantID == "" || group == "" || pluginKey == "" {
		return nil, "", mcp.NewToolResultError("tenant_id, group, and plugin are required")
	}
	ops, err := h.manager.Ops(group, pluginKey)
	if err != nil {
		return nil, "", mcp.NewToolResultError(fmt.Sprintf("Unknown integration: %v", err))
	}
	return ops, tenantID, nil
}
