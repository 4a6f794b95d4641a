package models

import "time"

// PlanMapping maps Stripe price IDs to internal entitlement plans.
type PlanMapping struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	StripePriceID   string    `gorm:"type:varchar(191);not null;index:ux_plan_mappings_price,unique,priority:1" json:"stripe_price_id"`
	InternalPlan    string    `gorm:"type:varchar(50);not null;default:'free';index" json:"internal_plan"`
	BillingInterval string    `gorm:"type:varchar(16);not null;default:'unknown';index:ux_plan_mappings_price,unique,priority:2" json:"billing_interval"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
