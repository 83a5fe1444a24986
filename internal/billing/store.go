package billing

import "context"

// SubscriptionStore persists tenant subscriptions.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *Subscription) error
	// FirstForTenant returns the tenant's earliest subscription record,
	// or ErrNoSubscription.
	FirstForTenant(ctx context.Context, tenantID string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
}

// PlanStore persists the plan catalog.
type PlanStore interface {
	Upsert(ctx context.Context, plan *Plan) error
	GetByPriceID(ctx context.Context, priceID string) (*Plan, error)
	List(ctx context.Context) ([]*Plan, error)
}
