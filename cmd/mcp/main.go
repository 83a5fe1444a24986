// Launchdeck MCP Server - Exposes tenant integrations and quotas as MCP tools for LLMs
package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tmorell/launchdeck/internal/billing"
	"github.com/tmorell/launchdeck/internal/logging"
	"github.com/tmorell/launchdeck/internal/mcpserver"
	"github.com/tmorell/launchdeck/internal/member"
	"github.com/tmorell/launchdeck/internal/notify"
	"github.com/tmorell/launchdeck/internal/plugin"
	"github.com/tmorell/launchdeck/internal/quota"
	"github.com/tmorell/launchdeck/internal/tenant"
)

func main() {
	// stdout carries the MCP wire protocol, so all logging goes to stderr
	logger := logging.NewWithWriter(os.Stderr, envOrDefault("LOG_LEVEL", "info"), "text")

	var (
		tenants tenant.Store
		subs    billing.SubscriptionStore
		plans   billing.PlanStore
		counter quota.UsageCounter
	)

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := db.Ping(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
			os.Exit(1)
		}
		tenants = tenant.NewPostgresStore(db)
		subs = billing.NewPostgresSubscriptionStore(db)
		plans = billing.NewPostgresPlanStore(db)
		counter = quota.NewPostgresCounter(db)
	} else {
		tenants = tenant.NewMemoryStore()
		subs = billing.NewMemorySubscriptionStore()
		plans = billing.NewMemoryPlanStore()
		counter = member.NewMemoryStore()
		logger.Warn("DATABASE_URL not set, using empty in-memory stores")
	}

	sender := notify.NewSender(logger)
	reg, err := plugin.NewRegistry(plugin.Catalog(sender)...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build integration catalog: %v\n", err)
		os.Exit(1)
	}
	manager := plugin.NewManager(reg, tenants, logger)
	quotas := quota.NewProvider(tenants, subs, plans, counter, logger)

	s := mcpserver.NewMCPServer(manager, quotas)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
