package billing

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PostgresSubscriptionStore persists subscriptions in PostgreSQL.
type PostgresSubscriptionStore struct {
	db *sql.DB
}

// NewPostgresSubscriptionStore creates a new PostgreSQL-backed subscription store.
func NewPostgresSubscriptionStore(db *sql.DB) *PostgresSubscriptionStore {
	return &PostgresSubscriptionStore{db: db}
}

func (p *PostgresSubscriptionStore) Create(ctx context.Context, sub *Subscription) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, tenant_id, price_id, status, current_period_start, current_period_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.TenantID, sub.PriceID, string(sub.Status),
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CreatedAt,
	)
	return err
}

func (p *PostgresSubscriptionStore) FirstForTenant(ctx context.Context, tenantID string) (*Subscription, error) {
	sub := &Subscription{}
	var status string
	err := p.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, price_id, status, current_period_start, current_period_end, created_at
		FROM subscriptions WHERE tenant_id = $1
		ORDER BY created_at ASC LIMIT 1`, tenantID).
		Scan(&sub.ID, &sub.TenantID, &sub.PriceID, &status,
			&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, err
	}
	sub.Status = SubscriptionStatus(status)
	return sub, nil
}

func (p *PostgresSubscriptionStore) Update(ctx context.Context, sub *Subscription) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE subscriptions SET price_id = $1, status = $2,
			current_period_start = $3, current_period_end = $4
		WHERE id = $5`,
		sub.PriceID, string(sub.Status), sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNoSubscription
	}
	return nil
}

var _ SubscriptionStore = (*PostgresSubscriptionStore)(nil)

// PostgresPlanStore persists the plan catalog in PostgreSQL.
type PostgresPlanStore struct {
	db *sql.DB
}

// NewPostgresPlanStore creates a new PostgreSQL-backed plan store.
func NewPostgresPlanStore(db *sql.DB) *PostgresPlanStore {
	return &PostgresPlanStore{db: db}
}

func (p *PostgresPlanStore) Upsert(ctx context.Context, plan *Plan) error {
	metadataJSON, err := json.Marshal(plan.Metadata)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, price_id, amount, currency, interval, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (price_id) DO UPDATE SET
			id = EXCLUDED.id, name = EXCLUDED.name, amount = EXCLUDED.amount,
			currency = EXCLUDED.currency, interval = EXCLUDED.interval,
			metadata = EXCLUDED.metadata, updated_at = NOW()`,
		plan.ID, plan.Name, plan.PriceID, plan.Amount, plan.Currency, plan.Interval, metadataJSON,
	)
	return err
}

func (p *PostgresPlanStore) GetByPriceID(ctx context.Context, priceID string) (*Plan, error) {
	return p.scanPlan(p.db.QueryRowContext(ctx, `
		SELECT id, name, price_id, amount, currency, interval, metadata, updated_at
		FROM plans WHERE price_id = $1`, priceID))
}

func (p *PostgresPlanStore) List(ctx context.Context) ([]*Plan, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, price_id, amount, currency, interval, metadata, updated_at
		FROM plans ORDER BY amount ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var plans []*Plan
	for rows.Next() {
		plan := &Plan{}
		var metadataJSON []byte
		if err := rows.Scan(&plan.ID, &plan.Name, &plan.PriceID, &plan.Amount,
			&plan.Currency, &plan.Interval, &metadataJSON, &plan.UpdatedAt); err != nil {
			return nil, err
		}
		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &plan.Metadata)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (p *PostgresPlanStore) scanPlan(row *sql.Row) (*Plan, error) {
	plan := &Plan{}
	var metadataJSON []byte
	err := row.Scan(&plan.ID, &plan.Name, &plan.PriceID, &plan.Amount,
		&plan.Currency, &plan.Interval, &metadataJSON, &plan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		_ = json.Unmarshal(metadataJSON, &plan.Metadata)
	}
	return plan, nil
}

var _ PlanStore = (*PostgresPlanStore)(nil)
