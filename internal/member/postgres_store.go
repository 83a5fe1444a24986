package member

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists members and invitations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed member store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateMember(ctx context.Context, m *Member) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO members (id, tenant_id, email, name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.TenantID, m.Email, m.Name, string(m.Role), m.CreatedAt,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresStore) GetMember(ctx context.Context, id string) (*Member, error) {
	m := &Member{}
	var role string
	err := p.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, email, name, role, created_at
		FROM members WHERE id = $1`, id).
		Scan(&m.ID, &m.TenantID, &m.Email, &m.Name, &role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Role = Role(role)
	return m, nil
}

func (p *PostgresStore) ListMembers(ctx context.Context, tenantID string) ([]*Member, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, tenant_id, email, name, role, created_at
		FROM members WHERE tenant_id = $1 ORDER BY created_at ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Member
	for rows.Next() {
		m := &Member{}
		var role string
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Email, &m.Name, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeleteMember(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (p *PostgresStore) CreateInvitation(ctx context.Context, inv *Invitation) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO invitations (id, tenant_id, email, role, token, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inv.ID, inv.TenantID, inv.Email, string(inv.Role), inv.Token,
		string(inv.Status), inv.ExpiresAt, inv.CreatedAt,
	)
	return err
}

func (p *PostgresStore) GetInvitationByToken(ctx context.Context, token string) (*Invitation, error) {
	inv := &Invitation{}
	var role, status string
	err := p.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, email, role, token, status, expires_at, created_at
		FROM invitations WHERE token = $1`, token).
		Scan(&inv.ID, &inv.TenantID, &inv.Email, &role, &inv.Token,
			&status, &inv.ExpiresAt, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.Role = Role(role)
	inv.Status = InviteStatus(status)
	return inv, nil
}

func (p *PostgresStore) ListInvitations(ctx context.Context, tenantID string) ([]*Invitation, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, tenant_id, email, role, token, status, expires_at, created_at
		FROM invitations WHERE tenant_id = $1 ORDER BY created_at ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Invitation
	for rows.Next() {
		inv := &Invitation{}
		var role, status string
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.Email, &role, &inv.Token,
			&status, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		inv.Role = Role(role)
		inv.Status = InviteStatus(status)
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateInvitation(ctx context.Context, inv *Invitation) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE invitations SET status = $1 WHERE id = $2`,
		string(inv.Status), inv.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInviteNotFound
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
