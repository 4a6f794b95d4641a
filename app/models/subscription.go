package models

import "time"

const (
	BillingIntervalMonth   = "month"
	BillingIntervalYear    = "year"
	BillingIntervalUnknown = "unknown"
)

const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
	// SubscriptionStatusNone is the sentinel persisted when a customer has no
	// subscription at the provider, so repeated checks stay local until an
	// explicit resync.
	SubscriptionStatusNone = "none"
)

// Subscription is the local mirror of provider subscription state. One row
// per Stripe customer (and therefore per user); every sync overwrites the
// row wholesale, it is never partially patched.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               string     `gorm:"type:uuid;index;default:''" json:"user_id"`
	StripeCustomerID     string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"stripe_customer_id"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);default:''" json:"stripe_subscription_id"`
	Status               string     `gorm:"type:varchar(32);not null;default:'none';index" json:"status"`
	PriceID              string     `gorm:"type:varchar(191);default:''" json:"price_id"`
	PlanName             string     `gorm:"type:varchar(150);default:''" json:"plan_name"`
	InternalPlan         string     `gorm:"type:varchar(50);not null;default:'free';index" json:"internal_plan"`
	BillingInterval      string     `gorm:"type:varchar(16);not null;default:'unknown'" json:"billing_interval"`
	Currency             string     `gorm:"type:varchar(8);default:''" json:"currency"`
	UnitAmount           int64      `gorm:"default:0" json:"unit_amount"`
	CurrentPeriodStart   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `gorm:"default:false" json:"cancel_at_period_end"`
	PaymentMethodBrand   string     `gorm:"type:varchar(32);default:''" json:"payment_method_brand"`
	PaymentMethodLast4   string     `gorm:"type:varchar(4);default:''" json:"payment_method_last4"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasSubscription reports whether the mirror row represents a real provider
// subscription rather than the "none" sentinel.
func (s *Subscription) HasSubscription() bool {
	return s.Status != SubscriptionStatusNone && s.StripeSubscriptionID != ""
}
