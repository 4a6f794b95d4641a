package billing

import (
	"strings"

	"github.com/stripe/stripe-go/v82"

	"github.com/launchbase-dev/launchbase/app/models"
	"github.com/launchbase-dev/launchbase/internal/pkg/entitlements"
)

// PlanCacheKey is the cache key under which a user's effective plan is
// memoized. Writers that change subscription state delete it.
func PlanCacheKey(userID string) string {
	return "user_plan:" + userID
}

// EffectivePlan returns the plan a mirror row actually entitles the user to.
// Non-entitling statuses (canceled, incomplete, none) always mean free.
func EffectivePlan(sub *models.Subscription) entitlements.Plan {
	if sub == nil || !isEntitlingStatus(sub.Status) {
		return entitlements.PlanFree
	}
	return entitlements.Normalize(sub.InternalPlan)
}

func normalizeInterval(interval string) string {
	i := strings.ToLower(strings.TrimSpace(interval))
	switch i {
	case models.BillingIntervalMonth, models.BillingIntervalYear:
		return i
	default:
		return models.BillingIntervalUnknown
	}
}

func isEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing, models.SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}

// subscriptionStatus maps provider statuses onto the local enum.
func subscriptionStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return models.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return models.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusIncomplete
	}
}
