package member

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmorell/launchdeck/internal/billing"
	"github.com/tmorell/launchdeck/internal/idgen"
	"github.com/tmorell/launchdeck/internal/logging"
	"github.com/tmorell/launchdeck/internal/metrics"
	"github.com/tmorell/launchdeck/internal/quota"
	"github.com/tmorell/launchdeck/internal/traces"
	"github.com/tmorell/launchdeck/internal/validation"
)

const inviteTTL = 7 * 24 * time.Hour

// Event describes a completed membership transition, for observers such
// as the realtime hub.
type Event struct {
	TenantID string `json:"tenantId"`
	Action   string `json:"action"` // "invite_created", "member_joined"
	ID       string `json:"id"`     // invitation or member ID
	Role     Role   `json:"role"`
}

// EventSink receives membership events. Implementations must not block.
type EventSink interface {
	MemberEvent(ev Event)
}

// Service coordinates invitations and memberships, gating both on the
// plan's team-member quota.
type Service struct {
	store  Store
	quotas *quota.Provider
	events EventSink
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEventSink wires an observer for completed membership transitions.
func WithEventSink(sink EventSink) ServiceOption {
	return func(s *Service) { s.events = sink }
}

// NewService creates a member service.
func NewService(store Store, quotas *quota.Provider, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{store: store, quotas: quotas, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invite creates a pending invitation after checking there is room on the
// plan. Returns ErrQuotaExceeded when the team is full.
func (s *Service) Invite(ctx context.Context, tenantID, email string, role Role) (*Invitation, error) {
	ctx, span := traces.StartSpan(ctx, "member.Invite", traces.TenantID(tenantID))
	defer span.End()

	if !validation.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	if err := s.checkCapacity(ctx, tenantID); err != nil {
		return nil, err
	}

	inv := &Invitation{
		ID:        idgen.WithPrefix("inv_"),
		TenantID:  tenantID,
		Email:     email,
		Role:      role,
		Token:     idgen.Hex(24),
		Status:    InvitePending,
		ExpiresAt: time.Now().Add(inviteTTL),
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	if s.events != nil {
		s.events.MemberEvent(Event{
			TenantID: tenantID, Action: "invite_created", ID: inv.ID, Role: inv.Role,
		})
	}
	logging.L(ctx).Info("invitation created",
		"invitation_id", inv.ID, "tenant_id", tenantID, "role", string(role))
	return inv, nil
}

// Accept redeems an invitation token and creates the membership. Capacity
// is re-checked at redemption time since the team may have filled up after
// the invite was sent.
func (s *Service) Accept(ctx context.Context, token, name string) (*Member, error) {
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Status != InvitePending {
		return nil, ErrInviteConsumed
	}
	if time.Now().After(inv.ExpiresAt) {
		return nil, ErrInviteExpired
	}

	ctx, span := traces.StartSpan(ctx, "member.Accept", traces.TenantID(inv.TenantID))
	defer span.End()

	if err := s.checkCapacity(ctx, inv.TenantID); err != nil {
		return nil, err
	}

	m := &Member{
		ID:        idgen.WithPrefix("mem_"),
		TenantID:  inv.TenantID,
		Email:     inv.Email,
		Name:      name,
		Role:      inv.Role,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateMember(ctx, m); err != nil {
		return nil, err
	}

	inv.Status = InviteAccepted
	if err := s.store.UpdateInvitation(ctx, inv); err != nil {
		// Membership is already durable; the stale invite row is only a
		// cosmetic leftover.
		logging.L(ctx).Warn("failed to mark invitation accepted",
			"invitation_id", inv.ID, "error", err)
	}
	if s.events != nil {
		s.events.MemberEvent(Event{
			TenantID: m.TenantID, Action: "member_joined", ID: m.ID, Role: m.Role,
		})
	}
	logging.L(ctx).Info("member joined",
		"member_id", m.ID, "tenant_id", m.TenantID, "role", string(m.Role))
	return m, nil
}

// Revoke cancels a pending invitation.
func (s *Service) Revoke(ctx context.Context, token string) error {
	inv, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return err
	}
	if inv.Status != InvitePending {
		return ErrInviteConsumed
	}
	inv.Status = InviteRevoked
	return s.store.UpdateInvitation(ctx, inv)
}

// ListMembers returns the tenant's members.
func (s *Service) ListMembers(ctx context.Context, tenantID string) ([]*Member, error) {
	return s.store.ListMembers(ctx, tenantID)
}

// ListInvitations returns the tenant's invitations.
func (s *Service) ListInvitations(ctx context.Context, tenantID string) ([]*Invitation, error) {
	return s.store.ListInvitations(ctx, tenantID)
}

// Remove deletes a membership.
func (s *Service) Remove(ctx context.Context, memberID string) error {
	return s.store.DeleteMember(ctx, memberID)
}

func (s *Service) checkCapacity(ctx context.Context, tenantID string) error {
	fq, err := s.quotas.GetFeatureQuota(ctx, tenantID, billing.FeatureTeamMembers)
	if err != nil {
		return err
	}
	if !fq.Available {
		metrics.QuotaExceededTotal.WithLabelValues(string(billing.FeatureTeamMembers)).Inc()
		logging.L(ctx).Info("invite blocked by quota",
			"tenant_id", tenantID, "used", fq.Quota.Used, "total", fq.Quota.Total)
		return ErrQuotaExceeded
	}
	return nil
}
