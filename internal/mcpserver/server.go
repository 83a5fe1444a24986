// Package mcpserver exposes the integration runtime and quota provider
// as MCP tools for LLM clients.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/tmorell/launchdeck/internal/plugin"
	"github.com/tmorell/launchdeck/internal/quota"
)

// NewMCPServer creates a configured MCP server with all Launchdeck tools registered.
func NewMCPServer(manager *plugin.Manager, quotas *quota.Provider) *server.MCPServer {
	s := server.NewMCPServer("launchdeck", "1.0.0")
	h := NewHandlers(manager, quotas)

	s.AddTool(ToolListIntegrations, h.HandleListIntegrations)
	s.AddTool(ToolGetIntegrationStatus, h.HandleGetIntegrationStatus)
	s.AddTool(ToolUpdateIntegration, h.HandleUpdateIntegration)
	s.AddTool(ToolActivateIntegration, h.HandleActivateIntegration)
	s.AddTool(ToolDeactivateIntegration, h.HandleDeactivateIntegration)
	s.AddTool(ToolGetFeatureQuota, h.HandleGetFeatureQuota)

	return s
}
