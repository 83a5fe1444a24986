package tenant

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"
)

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	settingsJSON, err := json.Marshal(t.Settings)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, billing_customer_id, status, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.Slug, t.BillingCustomerID, string(t.Status),
		settingsJSON, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, billing_customer_id, status, settings, created_at, updated_at
		FROM tenants WHERE id = $1`, id))
}

func (p *PostgresStore) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, billing_customer_id, status, settings, created_at, updated_at
		FROM tenants WHERE slug = $1`, slug))
}

func (p *PostgresStore) Update(ctx context.Context, t *Tenant) error {
	settingsJSON, err := json.Marshal(t.Settings)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE tenants SET name = $1, billing_customer_id = $2, status = $3,
			settings = $4, updated_at = $5
		WHERE id = $6`,
		t.Name, t.BillingCustomerID, string(t.Status), settingsJSON, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// SetPluginState writes a single integration's entry via jsonb_set so that
// sibling plugins and unrelated settings keys are never rewritten.
func (p *PostgresStore) SetPluginState(ctx context.Context, tenantID, group, plugin string, state PluginState) (*Tenant, error) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	row := p.db.QueryRowContext(ctx, `
		UPDATE tenants SET settings = jsonb_set(
			jsonb_set(
				jsonb_set(settings, '{plugins}', COALESCE(settings->'plugins', '{}'::jsonb), true),
				ARRAY['plugins', $2], COALESCE(settings->'plugins'->$2, '{}'::jsonb), true
			),
			ARRAY['plugins', $2, $3], $4::jsonb, true
		), updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, slug, billing_customer_id, status, settings, created_at, updated_at`,
		tenantID, group, plugin, stateJSON,
	)
	return p.scanTenant(row)
}

func (p *PostgresStore) scanTenant(row *sql.Row) (*Tenant, error) {
	t := &Tenant{}
	var (
		status       string
		customerID   sql.NullString
		settingsJSON []byte
	)
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &customerID, &status, &settingsJSON,
		&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if customerID.Valid {
		t.BillingCustomerID = customerID.String
	}
	if len(settingsJSON) > 0 {
		_ = json.Unmarshal(settingsJSON, &t.Settings)
	}
	return t, nil
}

var _ Store = (*PostgresStore)(nil)
