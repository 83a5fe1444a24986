package quota

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tmorell/launchdeck/internal/billing"
	"github.com/tmorell/launchdeck/internal/tenant"
)

// Handler provides HTTP endpoints for feature quotas.
type Handler struct {
	provider *Provider
}

// NewHandler creates a new quota handler.
func NewHandler(provider *Provider) *Handler {
	return &Handler{provider: provider}
}

// RegisterRoutes sets up quota routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants/:id/features", h.ListFeatures)
	r.GET("/tenants/:id/features/:feature", h.GetFeature)
}

// ListFeatures handles GET /v1/tenants/:id/features
func (h *Handler) ListFeatures(c *gin.Context) {
	features, err := h.provider.GetTenantFeatures(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"features": features, "count": len(features)})
}

// GetFeature handles GET /v1/tenants/:id/features/:feature
func (h *Handler) GetFeature(c *gin.Context) {
	fq, err := h.provider.GetFeatureQuota(c.Request.Context(), c.Param("id"),
		billing.FeatureID(c.Param("feature")))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, fq)
}

func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "message": "tenant does not exist"})
	case errors.Is(err, billing.ErrNoSubscription):
		c.JSON(http.StatusNotFound, gin.H{"error": "no_subscription", "message": "tenant has no subscription"})
	case errors.Is(err, billing.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plan_not_found", "message": "no plan matches the subscription"})
	case errors.Is(err, ErrFeatureNotInPlan):
		c.JSON(http.StatusNotFound, gin.H{"error": "feature_not_in_plan", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "quota lookup failed"})
	}
}
