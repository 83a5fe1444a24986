// Package member manages tenant memberships and invitations, enforcing the
// team-size quota from the tenant's plan.
package member

import (
	"errors"
	"time"
)

// Errors
var (
	ErrMemberNotFound = errors.New("member: not found")
	ErrDuplicate      = errors.New("member: already a member of this tenant")
	ErrInviteNotFound = errors.New("member: invitation not found")
	ErrInviteExpired  = errors.New("member: invitation expired")
	ErrInviteConsumed = errors.New("member: invitation already used")
	ErrQuotaExceeded  = errors.New("member: team member quota exceeded")
	ErrInvalidEmail   = errors.New("member: invalid email address")
)

// Role is a member's permission level within a tenant.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// InviteStatus tracks an invitation through its lifecycle.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteRevoked  InviteStatus = "revoked"
)

// Member is one person's membership in a tenant.
type Member struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Invitation is a pending offer to join a tenant, redeemed by token.
type Invitation struct {
	ID        string       `json:"id"`
	TenantID  string       `json:"tenantId"`
	Email     string       `json:"email"`
	Role      Role         `json:"role"`
	Token     string       `json:"-"`
	Status    InviteStatus `json:"status"`
	ExpiresAt time.Time    `json:"expiresAt"`
	CreatedAt time.Time    `json:"createdAt"`
}
