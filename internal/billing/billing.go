// Package billing provides subscriptions, the plan catalog, and the
// feature metadata that drives quota accounting.
package billing

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNoSubscription = errors.New("billing: no subscription for tenant")
	ErrPlanNotFound   = errors.New("billing: plan not found")
)

// SubscriptionStatus mirrors the billing provider's subscription states.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Subscription binds a tenant to a priced plan.
type Subscription struct {
	ID                 string             `json:"id"`
	TenantID           string             `json:"tenantId"`
	PriceID            string             `json:"priceId"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time          `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time          `json:"currentPeriodEnd"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// Plan is one purchasable tier. Metadata carries the feature limits keyed
// by feature ID, as strings (e.g. {"TEAM_MEMBERS": "5"}).
type Plan struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	PriceID   string            `json:"priceId"`
	Amount    int64             `json:"amount"` // smallest currency unit per interval
	Currency  string            `json:"currency"`
	Interval  string            `json:"interval"` // "month" or "year"
	Metadata  map[string]string `json:"metadata"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
