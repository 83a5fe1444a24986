package tenant

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tmorell/launchdeck/internal/idgen"
	"github.com/tmorell/launchdeck/internal/validation"
)

// Handler provides HTTP endpoints for tenant management.
type Handler struct {
	store Store
	// defaults is the registry's full plugin settings skeleton, cloned
	// into every new tenant.
	defaults PluginSettings
}

// NewHandler creates a new tenant handler. defaults seeds each new
// tenant's plugin settings with every known group/plugin pair disabled.
func NewHandler(store Store, defaults PluginSettings) *Handler {
	return &Handler{store: store, defaults: defaults}
}

// RegisterRoutes sets up tenant CRUD routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/tenants", h.Create)
	r.GET("/tenants/:id", h.Get)
	r.GET("/tenants/by-slug/:slug", h.GetBySlug)
	r.PATCH("/tenants/:id", h.Patch)
}

type createRequest struct {
	Name         string `json:"name" binding:"required"`
	Slug         string `json:"slug" binding:"required"`
	BillingEmail string `json:"billingEmail"`
	Locale       string `json:"locale"`
}

// Create handles POST /v1/tenants
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and slug are required"})
		return
	}

	slug := validation.NormalizeSlug(req.Slug)
	if !validation.IsValidSlug(slug) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slug", "message": "slug must be 3-64 lowercase alphanumeric characters or hyphens"})
		return
	}
	if req.BillingEmail != "" && !validation.IsValidEmail(req.BillingEmail) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email", "message": "billing email is not valid"})
		return
	}

	now := time.Now()
	t := &Tenant{
		ID:     idgen.WithPrefix("ten_"),
		Name:   validation.SanitizeString(req.Name, 128),
		Slug:   slug,
		Status: StatusActive,
		Settings: Settings{
			Plugins:      h.defaults.Clone(),
			BillingEmail: req.BillingEmail,
			Locale:       req.Locale,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.Create(c.Request.Context(), t); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// Get handles GET /v1/tenants/:id
func (h *Handler) Get(c *gin.Context) {
	t, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// GetBySlug handles GET /v1/tenants/by-slug/:slug
func (h *Handler) GetBySlug(c *gin.Context) {
	t, err := h.store.GetBySlug(c.Request.Context(), validation.NormalizeSlug(c.Param("slug")))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type patchRequest struct {
	Name         *string `json:"name"`
	BillingEmail *string `json:"billingEmail"`
	Locale       *string `json:"locale"`
	Status       *Status `json:"status"`
}

// Patch handles PATCH /v1/tenants/:id
func (h *Handler) Patch(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed body"})
		return
	}

	t, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	if req.Name != nil {
		t.Name = validation.SanitizeString(*req.Name, 128)
	}
	if req.BillingEmail != nil {
		if *req.BillingEmail != "" && !validation.IsValidEmail(*req.BillingEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email", "message": "billing email is not valid"})
			return
		}
		t.Settings.BillingEmail = *req.BillingEmail
	}
	if req.Locale != nil {
		t.Settings.Locale = *req.Locale
	}
	if req.Status != nil {
		switch *req.Status {
		case StatusActive, StatusSuspended, StatusCancelled:
			t.Status = *req.Status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": "unknown tenant status"})
			return
		}
	}
	t.UpdatedAt = time.Now()

	if err := h.store.Update(c.Request.Context(), t); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "message": "tenant does not exist"})
	case errors.Is(err, ErrSlugTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "slug_taken", "message": "a tenant with this slug already exists"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "operation failed"})
	}
}
