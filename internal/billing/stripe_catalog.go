package billing

import (
	"context"
	"log/slog"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// CatalogSync loads the plan catalog from Stripe into a PlanStore.
// Only products tagged with the configured app metadata key are imported;
// the remaining product metadata becomes the plan's feature metadata.
type CatalogSync struct {
	sc     *client.API
	plans  PlanStore
	app    string
	logger *slog.Logger
}

// NewCatalogSync creates a catalog loader against the Stripe API.
func NewCatalogSync(apiKey, app string, plans PlanStore, logger *slog.Logger) *CatalogSync {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &CatalogSync{sc: sc, plans: plans, app: app, logger: logger}
}

// Sync fetches active recurring prices with their products and upserts
// matching plans. Returns the number of plans imported.
func (c *CatalogSync) Sync(ctx context.Context) (int, error) {
	params := &stripe.PriceListParams{}
	params.Context = ctx
	params.Active = stripe.Bool(true)
	params.AddExpand("data.product")

	count := 0
	iter := c.sc.Prices.List(params)
	for iter.Next() {
		pr := iter.Price()
		prod := pr.Product
		if prod == nil || prod.Metadata["app"] != c.app {
			continue
		}
		if pr.Recurring == nil {
			continue
		}

		metadata := make(map[string]string, len(prod.Metadata))
		for k, v := range prod.Metadata {
			if k == "app" {
				continue
			}
			metadata[k] = v
		}

		plan := &Plan{
			ID:       prod.ID,
			Name:     prod.Name,
			PriceID:  pr.ID,
			Amount:   pr.UnitAmount,
			Currency: string(pr.Currency),
			Interval: string(pr.Recurring.Interval),
			Metadata: metadata,
		}
		if err := c.plans.Upsert(ctx, plan); err != nil {
			return count, err
		}
		c.logger.Debug("imported plan",
			"plan_id", plan.ID, "price_id", plan.PriceID, "name", plan.Name)
		count++
	}
	if err := iter.Err(); err != nil {
		return count, err
	}
	c.logger.Info("plan catalog synced", "plans", count)
	return count, nil
}
