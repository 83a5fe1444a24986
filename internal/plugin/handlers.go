package plugin

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tmorell/launchdeck/internal/notify"
	"github.com/tmorell/launchdeck/internal/tenant"
)

// Handler provides HTTP endpoints for the integration runtime.
type Handler struct {
	manager       *Manager
	webhookSecret string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithWebhookSecret requires inbound webhook payloads to carry a valid
// HMAC signature. An empty secret leaves the hook route open.
func WithWebhookSecret(secret string) HandlerOption {
	return func(h *Handler) { h.webhookSecret = secret }
}

// NewHandler creates a new integrations handler.
func NewHandler(manager *Manager, opts ...HandlerOption) *Handler {
	h := &Handler{manager: manager}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes sets up catalog and per-tenant integration routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/integrations", h.ListIntegrations)
	r.GET("/integration-groups", h.ListGroups)
	r.GET("/integration-groups/:group", h.GetGroup)

	t := r.Group("/tenants/:id/integrations/:group/:plugin")
	t.GET("", h.GetState)
	t.PUT("", h.Update)
	t.POST("/activate", h.Activate)
	t.POST("/deactivate", h.Deactivate)
	t.POST("/methods/:method", h.CallMethod)
}

// RegisterWebhookRoutes sets up the unauthenticated inbound webhook route.
func (h *Handler) RegisterWebhookRoutes(r *gin.RouterGroup) {
	r.POST("/hooks/:id/:group/:plugin", h.ReceiveWebhook)
}

// ListIntegrations handles GET /v1/integrations?group=&q=
func (h *Handler) ListIntegrations(c *gin.Context) {
	plugins := h.manager.Registry().ListPlugins(Filter{
		Group:      c.Query("group"),
		SearchTerm: c.Query("q"),
	})
	c.JSON(http.StatusOK, gin.H{"integrations": plugins, "count": len(plugins)})
}

// ListGroups handles GET /v1/integration-groups
func (h *Handler) ListGroups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": h.manager.Registry().List()})
}

// GetGroup handles GET /v1/integration-groups/:group
func (h *Handler) GetGroup(c *gin.Context) {
	summary, err := h.manager.Registry().Get(c.Param("group"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "group_not_found", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetState handles GET /v1/tenants/:id/integrations/:group/:plugin
func (h *Handler) GetState(c *gin.Context) {
	ops, ok := h.ops(c)
	if !ok {
		return
	}
	installed, err := ops.IsInstalled(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installed": installed})
}

// Update handles PUT /v1/tenants/:id/integrations/:group/:plugin
func (h *Handler) Update(c *gin.Context) {
	ops, ok := h.ops(c)
	if !ok {
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed body"})
		return
	}
	state, err := ops.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": state.Enabled, "config": state.Config})
}

// Activate handles POST /v1/tenants/:id/integrations/:group/:plugin/activate
func (h *Handler) Activate(c *gin.Context) {
	ops, ok := h.ops(c)
	if !ok {
		return
	}
	if err := ops.Activate(c.Request.Context(), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true})
}

// Deactivate handles POST /v1/tenants/:id/integrations/:group/:plugin/deactivate
func (h *Handler) Deactivate(c *gin.Context) {
	ops, ok := h.ops(c)
	if !ok {
		return
	}
	if err := ops.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

// CallMethod handles POST /v1/tenants/:id/integrations/:group/:plugin/methods/:method
func (h *Handler) CallMethod(c *gin.Context) {
	ops, ok := h.ops(c)
	if !ok {
		return
	}
	var args map[string]any
	if err := c.ShouldBindJSON(&args); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed body"})
		return
	}
	result, err := ops.Call(c.Request.Context(), c.Param("method"), c.Param("id"), args)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// ReceiveWebhook handles POST /hooks/:id/:group/:plugin
func (h *Handler) ReceiveWebhook(c *gin.Context) {
	ops, ok := h.ops(c)
	if !ok {
		return
	}
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "unreadable body"})
		return
	}
	if h.webhookSecret != "" {
		sig := c.GetHeader("X-Launchdeck-Signature")
		if !notify.VerifySignature(payload, h.webhookSecret, sig) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature", "message": "payload signature missing or invalid"})
			return
		}
	}
	if err := ops.ReceiveWebhook(c.Request.Context(), c.Param("id"), payload); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) ops(c *gin.Context) (*Operations, bool) {
	ops, err := h.manager.Ops(c.Param("group"), c.Param("plugin"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "integration_not_found", "message": err.Error()})
		return nil, false
	}
	return ops, true
}

func (h *Handler) renderError(c *gin.Context, err error) {
	var vErr *ValidationError
	var rErr *RejectedError
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "message": "tenant does not exist"})
	case errors.Is(err, ErrMethodNotFound), errors.Is(err, ErrNoWebhook):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_config",
			"message": vErr.Error(),
			"field":   vErr.Field,
		})
	case errors.As(err, &rErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_rejected", "message": rErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "operation failed"})
	}
}
