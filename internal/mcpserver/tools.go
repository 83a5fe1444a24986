package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Launchdeck MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListIntegrations = mcp.NewTool("list_integrations",
	mcp.WithDescription(
		"Browse the integration catalog: third-party services (Discord, Telegram, webhooks) "+
			"that can be enabled per tenant. Returns each integration's group, display info, "+
			"and the configuration fields it requires."),
	mcp.WithString("group",
		mcp.Description("Filter by integration group key (e.g. 'notifications', 'automation')")),
	mcp.WithString("query",
		mcp.Description("Free-text search over integration names and descriptions")),
)

var ToolGetIntegrationStatus = mcp.NewTool("get_integration_status",
	mcp.WithDescription(
		"Check whether a specific integration is currently enabled for a tenant."),
	mcp.WithString("tenant_id",
		mcp.Required(),
		mcp.Description("The tenant's ID (e.g. 'ten_1a2b...')")),
	mcp.WithString("group",
		mcp.Required(),
		mcp.Description("Integration group key (e.g. 'notifications')")),
	mcp.WithString("plugin",
		mcp.Required(),
		mcp.Description("Integration key within the group (e.g. 'discord')")),
)

var ToolUpdateIntegration = mcp.NewTool("update_integration",
	mcp.WithDescription(
		"Configure an integration for a tenant. Validates the configuration against the "+
			"integration's schema, persists it, and fires the appropriate lifecycle hooks. "+
			"Enabling happens automatically when all configuration fields are supplied."),
	mcp.WithString("tenant_id",
		mcp.Required(),
		mcp.Description("The tenant's ID")),
	mcp.WithString("group",
		mcp.Required(),
		mcp.Description("Integration group key")),
	mcp.WithString("plugin",
		mcp.Required(),
		mcp.Description("Integration key within the group")),
	mcp.WithObject("config",
		mcp.Description("Configuration values keyed by field name, per the integration's schema. For Discord: {\"webhookUrl\": \"https://discord.com/api/webhooks/...\"}")),
)

var ToolActivateIntegration = mcp.NewTool("activate_integration",
	mcp.WithDescription(
		"Enable an integration for a tenant using its stored configuration. "+
			"First-time activation runs the integration's install hook."),
	mcp.WithString("tenant_id",
		mcp.Required(),
		mcp.Description("The tenant's ID")),
	mcp.WithString("group",
		mcp.Required(),
		mcp.Description("Integration group key")),
	mcp.WithString("plugin",
		mcp.Required(),
		mcp.Description("Integration key within the group")),
)

var ToolDeactivateIntegration = mcp.NewTool("deactivate_integration",
	mcp.WithDescription(
		"Disable an integration for a tenant. Stored configuration is preserved "+
			"so the integration can be re-enabled later without reconfiguring."),
	mcp.WithString("tenant_id",
		mcp.Required(),
		mcp.Description("The tenant's ID")),
	mcp.WithString("group",
		mcp.Required(),
		mcp.Description("Integration group key")),
	mcp.WithString("plugin",
		mcp.Required(),
		mcp.Description("Integration key within the group")),
)

var ToolGetFeatureQuota = mcp.NewTool("get_feature_quota",
	mcp.WithDescription(
		"Get a tenant's feature quotas from their current plan: usage, limit, remaining "+
			"capacity, and whether further usage is allowed. Omit 'feature' to list all "+
			"countable features on the plan."),
	mcp.WithString("tenant_id",
		mcp.Required(),
		mcp.Description("The tenant's ID")),
	mcp.WithString("feature",
		mcp.Description("Feature ID to look up (e.g. 'TEAM_MEMBERS', 'INVITATIONS')")),
)
