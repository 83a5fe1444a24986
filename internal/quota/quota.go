// Package quota computes per-tenant feature quotas from the tenant's plan
// metadata and live usage counts.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/tmorell/launchdeck/internal/billing"
	"github.com/tmorell/launchdeck/internal/logging"
	"github.com/tmorell/launchdeck/internal/metrics"
	"github.com/tmorell/launchdeck/internal/tenant"
	"github.com/tmorell/launchdeck/internal/traces"
)

// ErrFeatureNotInPlan means the requested feature has no entry in the
// tenant's current plan metadata.
var ErrFeatureNotInPlan = errors.New("quota: feature not in plan")

// Usage is the numeric breakdown for a countable feature.
type Usage struct {
	Total     int64   `json:"total"`
	Used      int64   `json:"usage"`
	Remaining int64   `json:"available"`
	UsageRate float64 `json:"usageRate"`
}

// FeatureQuota is the per-feature quota result. Quota is present only for
// countable features.
type FeatureQuota struct {
	ID        billing.FeatureID `json:"id"`
	Available bool              `json:"available"`
	Quota     *Usage            `json:"quota,omitempty"`
}

// Provider computes quotas from the tenant, its subscription's plan, and a
// usage counter over the feature's backing table.
type Provider struct {
	tenants tenant.Store
	subs    billing.SubscriptionStore
	plans   billing.PlanStore
	counter UsageCounter
	logger  *slog.Logger
}

// NewProvider creates a quota provider.
func NewProvider(tenants tenant.Store, subs billing.SubscriptionStore, plans billing.PlanStore, counter UsageCounter, logger *slog.Logger) *Provider {
	return &Provider{tenants: tenants, subs: subs, plans: plans, counter: counter, logger: logger}
}

// GetTenantFeatures computes the quota for every countable feature in the
// tenant's current plan. Flag-only features are omitted. Missing tenant,
// subscription, or plan fail the whole call.
func (p *Provider) GetTenantFeatures(ctx context.Context, tenantID string) ([]FeatureQuota, error) {
	ctx, span := traces.StartSpan(ctx, "quota.GetTenantFeatures", traces.TenantID(tenantID))
	defer span.End()

	if _, err := p.tenants.Get(ctx, tenantID); err != nil {
		return nil, err
	}
	sub, err := p.subs.FirstForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	plan, err := p.plans.GetByPriceID(ctx, sub.PriceID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(plan.Metadata))
	for k := range plan.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now().UTC()
	out := make([]FeatureQuota, 0, len(keys))
	for _, k := range keys {
		feature := billing.FeatureID(k)
		meta, ok := billing.Features[feature]
		if !ok || !meta.Countable() {
			continue
		}

		total, err := strconv.ParseInt(plan.Metadata[k], 10, 64)
		if err != nil {
			logging.L(ctx).Warn("skipping feature with non-numeric plan metadata",
				"feature", k, "plan_id", plan.ID, "value", plan.Metadata[k])
			continue
		}

		var from, to *time.Time
		if !billing.UnboundedWindow[feature] {
			start, end := monthWindow(now)
			from, to = &start, &end
		}
		used, err := p.counter.Count(ctx, meta.Table, tenantID, from, to)
		if err != nil {
			return nil, fmt.Errorf("count %s usage: %w", k, err)
		}

		metrics.QuotaChecksTotal.WithLabelValues(k).Inc()
		out = append(out, FeatureQuota{
			ID:        feature,
			Available: used < total,
			Quota: &Usage{
				Total:     total,
				Used:      used,
				Remaining: total - used,
				UsageRate: usageRate(used, total),
			},
		})
	}
	return out, nil
}

// GetFeatureQuota computes the quota for one feature, failing with
// ErrFeatureNotInPlan when the tenant's plan does not carry it.
func (p *Provider) GetFeatureQuota(ctx context.Context, tenantID string, featureID billing.FeatureID) (*FeatureQuota, error) {
	ctx, span := traces.StartSpan(ctx, "quota.GetFeatureQuota",
		traces.TenantID(tenantID), traces.FeatureID(string(featureID)))
	defer span.End()

	features, err := p.GetTenantFeatures(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range features {
		if features[i].ID == featureID {
			return &features[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFeatureNotInPlan, featureID)
}

// usageRate is usage over total as a percentage, unclamped above 100.
// A zero or negative limit means the feature is exhausted before any
// usage; reporting a flat 100 keeps the value JSON-encodable where the
// plain division would produce NaN or Inf.
func usageRate(used, total int64) float64 {
	if total <= 0 {
		return 100
	}
	return float64(used) / float64(total) * 100
}

// monthWindow returns the inclusive bounds of t's calendar month.
func monthWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}
