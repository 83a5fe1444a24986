// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/tmorell/launchdeck/internal/billing"
	"github.com/tmorell/launchdeck/internal/config"
	"github.com/tmorell/launchdeck/internal/health"
	"github.com/tmorell/launchdeck/internal/logging"
	"github.com/tmorell/launchdeck/internal/member"
	"github.com/tmorell/launchdeck/internal/metrics"
	"github.com/tmorell/launchdeck/internal/notify"
	"github.com/tmorell/launchdeck/internal/plugin"
	"github.com/tmorell/launchdeck/internal/quota"
	"github.com/tmorell/launchdeck/internal/ratelimit"
	"github.com/tmorell/launchdeck/internal/realtime"
	"github.com/tmorell/launchdeck/internal/security"
	"github.com/tmorell/launchdeck/internal/tenant"
	"github.com/tmorell/launchdeck/internal/traces"
	"github.com/tmorell/launchdeck/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies.
type Server struct {
	cfg           *config.Config
	tenants       tenant.Store
	subscriptions billing.SubscriptionStore
	plans         billing.PlanStore
	memberStore   member.Store
	memberService *member.Service
	manager       *plugin.Manager
	quotas        *quota.Provider
	apiRequests   quota.RequestRecorder
	catalogSync   *billing.CatalogSync
	realtimeHub   *realtime.Hub
	rateLimiter   *ratelimit.Limiter
	healthChecks  *health.Registry
	db            *sql.DB // nil if using in-memory
	router        *gin.Engine
	httpSrv       *http.Server
	logger        *slog.Logger
	cancelRunCtx  context.CancelFunc // cancels background goroutines started in Run
	traceShutdown func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:          cfg,
		logger:       logging.New(cfg.LogLevel, "json"),
		healthChecks: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// The usage counting backend differs between storage modes, so it
	// gets resolved alongside the stores.
	var counter quota.UsageCounter

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.tenants = tenant.NewPostgresStore(db)
		s.subscriptions = billing.NewPostgresSubscriptionStore(db)
		s.plans = billing.NewPostgresPlanStore(db)
		s.memberStore = member.NewPostgresStore(db)
		counter = quota.NewPostgresCounter(db)
		s.apiRequests = quota.NewPostgresRecorder(db)
		s.healthChecks.Register("postgres", health.DBChecker("postgres", db))
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.tenants = tenant.NewMemoryStore()
		s.subscriptions = billing.NewMemorySubscriptionStore()
		s.plans = billing.NewMemoryPlanStore()
		memberStore := member.NewMemoryStore()
		s.memberStore = memberStore
		requests := quota.NewMemoryCounter()
		s.apiRequests = requests
		// The member store counts its own member and invitation rows;
		// request rows live in their own counter.
		counter = quota.MultiCounter{
			"members":      memberStore,
			"invitations":  memberStore,
			"api_requests": requests,
		}
		s.seedDemoPlan()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Stripe plan catalog (optional; the demo plan covers local runs)
	if cfg.StripeAPIKey != "" {
		s.catalogSync = billing.NewCatalogSync(cfg.StripeAPIKey, cfg.StripePlanPrefix, s.plans, s.logger)
		s.logger.Info("stripe plan catalog enabled", "app", cfg.StripePlanPrefix)
	}

	// Realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)

	// Integration runtime
	sender := notify.NewSender(s.logger)
	reg, err := plugin.NewRegistry(plugin.Catalog(sender)...)
	if err != nil {
		return nil, fmt.Errorf("failed to build integration catalog: %w", err)
	}
	s.manager = plugin.NewManager(reg, s.tenants, s.logger,
		plugin.WithEventSink(s.realtimeHub))

	// Quotas and memberships
	s.quotas = quota.NewProvider(s.tenants, s.subscriptions, s.plans, counter, s.logger)
	s.memberService = member.NewService(s.memberStore, s.quotas, s.logger,
		member.WithEventSink(s.realtimeHub))

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes(reg)

	s.healthy.Store(true)

	return s, nil
}

// seedDemoPlan gives in-memory mode a usable plan so quota and
// invitation flows work without a billing backend.
func (s *Server) seedDemoPlan() {
	_ = s.plans.Upsert(context.Background(), &billing.Plan{
		ID:       "prod_demo",
		Name:     "Demo",
		PriceID:  "price_demo",
		Amount:   0,
		Currency: "usd",
		Interval: "month",
		Metadata: map[string]string{
			"TEAM_MEMBERS": "5",
			"INVITATIONS":  "20",
			"API_REQUESTS": "1000",
		},
	})
}

// maskDSN hides the password in a connection string for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS
	origins := []string{"*"}
	if s.cfg.AllowedOrigins != "" {
		origins = strings.Split(s.cfg.AllowedOrigins, ",")
	}
	s.router.Use(security.CORSMiddleware(origins))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.FromRPS(s.cfg.RateLimitRPS))
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())

	// API request accounting for quota enforcement
	s.router.Use(s.usageRecordingMiddleware())
}

// usageRecordingMiddleware records one api_requests row per tenant-scoped
// request. Recording is best effort; a failed insert never fails the
// request it accounts for.
func (s *Server) usageRecordingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		tenantID := c.Param("id")
		if s.apiRequests == nil || !strings.HasPrefix(tenantID, "ten_") {
			return
		}
		err := s.apiRequests.Record(c.Request.Context(), tenantID,
			c.Request.Method, c.FullPath(), c.Writer.Status())
		if err != nil {
			logging.L(c.Request.Context()).Warn("failed to record api request",
				"tenant_id", tenantID,
				"error", err,
			)
		}
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		if tenantID := c.Param("id"); strings.HasPrefix(tenantID, "ten_") {
			ctx = logging.WithTenantID(ctx, tenantID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// adminMiddleware guards admin routes with the configured shared secret.
func (s *Server) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminSecret == "" {
			if s.cfg.IsProduction() {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   "admin_disabled",
					"message": "admin API is not configured",
				})
				return
			}
			// Open in development when no secret is set
			c.Next()
			return
		}
		got := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.AdminSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid admin secret",
			})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes(reg *plugin.Registry) {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	pluginHandler := plugin.NewHandler(s.manager,
		plugin.WithWebhookSecret(s.cfg.WebhookSecret))

	// Inbound integration webhooks live outside /v1: the callback path
	// is the only thing a third-party caller knows.
	pluginHandler.RegisterWebhookRoutes(s.router.Group(""))

	// V1 API group
	v1 := s.router.Group("/v1")

	tenant.NewHandler(s.tenants, reg.DefaultSettings()).RegisterRoutes(v1)
	pluginHandler.RegisterRoutes(v1)
	quota.NewHandler(s.quotas).RegisterRoutes(v1)
	member.NewHandler(s.memberService).RegisterRoutes(v1)

	// Admin routes
	admin := v1.Group("/admin")
	admin.Use(s.adminMiddleware())
	admin.POST("/subscriptions", s.createSubscription)
	admin.GET("/plans", s.listPlans)
	admin.POST("/plans/sync", s.syncPlans)
	admin.GET("/realtime/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.realtimeHub.Stats())
	})
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.healthChecks.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Launchdeck",
		"description": "Multi-tenant workspace platform with pluggable integrations",
		"version":     "0.1.0",
	})
}

type createSubscriptionRequest struct {
	TenantID string `json:"tenantId" binding:"required"`
	PriceID  string `json:"priceId" binding:"required"`
}

// createSubscription handles POST /v1/admin/subscriptions. In production
// subscriptions arrive via the billing provider's webhooks; this route
// covers manual assignment and demo mode.
func (s *Server) createSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "tenantId and priceId are required",
		})
		return
	}
	ctx := c.Request.Context()

	if _, err := s.tenants.Get(ctx, req.TenantID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "tenant_not_found",
			"message": "tenant does not exist",
		})
		return
	}
	if _, err := s.plans.GetByPriceID(ctx, req.PriceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "plan_not_found",
			"message": "no plan with this price",
		})
		return
	}

	now := time.Now()
	sub := &billing.Subscription{
		ID:                 "sub_" + generateRequestID()[:24],
		TenantID:           req.TenantID,
		PriceID:            req.PriceID,
		Status:             billing.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		CreatedAt:          now,
	}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		logging.L(ctx).Error("failed to create subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "could not create subscription",
		})
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (s *Server) listPlans(c *gin.Context) {
	plans, err := s.plans.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "could not list plans",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans, "count": len(plans)})
}

func (s *Server) syncPlans(c *gin.Context) {
	if s.catalogSync == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "stripe_disabled",
			"message": "STRIPE_API_KEY is not configured",
		})
		return
	}
	count, err := s.catalogSync.Sync(c.Request.Context())
	if err != nil {
		logging.L(c.Request.Context()).Error("plan sync failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "sync_failed",
			"message": "could not load plans from Stripe",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": count})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing
	shutdown, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.traceShutdown = shutdown
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Load the plan catalog from Stripe at startup
	if s.catalogSync != nil {
		go func() {
			syncCtx, syncCancel := context.WithTimeout(runCtx, 30*time.Second)
			defer syncCancel()
			if _, err := s.catalogSync.Sync(syncCtx); err != nil {
				s.logger.Error("initial plan sync failed", "error", err)
			}
		}()
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for background goroutines (hub, catalog sync)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	// Flush traces
	if s.traceShutdown != nil {
		if err := s.traceShutdown(ctx); err != nil {
			s.logger.Warn("trace shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Manager returns the integration runtime, used by the MCP entrypoint.
func (s *Server) Manager() *plugin.Manager {
	return s.manager
}

// Quotas returns the quota provider, used by the MCP entrypoint.
func (s *Server) Quotas() *quota.Provider {
	return s.quotas
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
