package member

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tmorell/launchdeck/internal/billing"
	"github.com/tmorell/launchdeck/internal/tenant"
)

// Handler provides HTTP endpoints for memberships and invitations.
type Handler struct {
	service *Service
}

// NewHandler creates a new member handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up member and invitation routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants/:id/members", h.ListMembers)
	r.DELETE("/tenants/:id/members/:member", h.RemoveMember)
	r.GET("/tenants/:id/invitations", h.ListInvitations)
	r.POST("/tenants/:id/invitations", h.Invite)
	r.POST("/invitations/:token/accept", h.Accept)
	r.POST("/invitations/:token/revoke", h.Revoke)
}

type inviteRequest struct {
	Email string `json:"email" binding:"required"`
	Role  Role   `json:"role"`
}

// Invite handles POST /v1/tenants/:id/invitations
func (h *Handler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email is required"})
		return
	}
	if req.Role == "" {
		req.Role = RoleMember
	}
	inv, err := h.service.Invite(c.Request.Context(), c.Param("id"), req.Email, req.Role)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invitation": inv, "token": inv.Token})
}

type acceptRequest struct {
	Name string `json:"name"`
}

// Accept handles POST /v1/invitations/:token/accept
func (h *Handler) Accept(c *gin.Context) {
	var req acceptRequest
	_ = c.ShouldBindJSON(&req)
	m, err := h.service.Accept(c.Request.Context(), c.Param("token"), req.Name)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": m})
}

// Revoke handles POST /v1/invitations/:token/revoke
func (h *Handler) Revoke(c *gin.Context) {
	if err := h.service.Revoke(c.Request.Context(), c.Param("token")); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

// ListMembers handles GET /v1/tenants/:id/members
func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members, "count": len(members)})
}

// ListInvitations handles GET /v1/tenants/:id/invitations
func (h *Handler) ListInvitations(c *gin.Context) {
	invites, err := h.service.ListInvitations(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invites, "count": len(invites)})
}

// RemoveMember handles DELETE /v1/tenants/:id/members/:member
func (h *Handler) RemoveMember(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("member")); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "quota_exceeded",
			"message": "team member limit reached for the current plan",
		})
	case errors.Is(err, tenant.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant_not_found", "message": "tenant does not exist"})
	case errors.Is(err, billing.ErrNoSubscription), errors.Is(err, billing.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no_plan", "message": err.Error()})
	case errors.Is(err, ErrMemberNotFound), errors.Is(err, ErrInviteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.Is(err, ErrInviteExpired), errors.Is(err, ErrInviteConsumed):
		c.JSON(http.StatusConflict, gin.H{"error": "invite_unusable", "message": err.Error()})
	case errors.Is(err, ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email", "message": err.Error()})
	case errors.Is(err, ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "already_member", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "operation failed"})
	}
}
