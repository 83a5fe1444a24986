package member

import "context"

// Store persists members and invitations.
type Store interface {
	CreateMember(ctx context.Context, m *Member) error
	GetMember(ctx context.Context, id string) (*Member, error)
	ListMembers(ctx context.Context, tenantID string) ([]*Member, error)
	DeleteMember(ctx context.Context, id string) error

	CreateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	ListInvitations(ctx context.Context, tenantID string) ([]*Invitation, error)
	UpdateInvitation(ctx context.Context, inv *Invitation) error
}
