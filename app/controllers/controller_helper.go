package controllers

import (
	"fmt"
	"strings"
	"time"

	"github.com/launchbase-dev/launchbase/internal/pkg/billing"
	"github.com/launchbase-dev/launchbase/internal/pkg/cache"
	"github.com/launchbase-dev/launchbase/internal/pkg/database"
	"github.com/launchbase-dev/launchbase/internal/pkg/env"
	"github.com/launchbase-dev/launchbase/internal/pkg/payments"
)

const (
	AUTH_KEY       string = "authenticated"
	USER_ID        string = "user_id"
	USER_EMAIL     string = "user_email"
	USER_IS_ADMIN  string = "isAdmin"
	FROM_PROTECTED string = "from_protected"
)

// billingServiceFn builds the billing service used by the handlers.
// Tests swap it for a fake-backed service.
var billingServiceFn = defaultBillingService

func defaultBillingService() (*billing.Service, error) {
	db := database.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database unavailable")
	}
	client, err := payments.NewFromEnv()
	if err != nil {
		return nil, err
	}
	return billing.NewServiceFromDB(db, client, publicBaseURL()), nil
}

func getBillingService() (*billing.Service, error) {
	return billingServiceFn()
}

func publicBaseURL() string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base
}

// invalidatePlanCache drops the memoized effective plan after an operation
// that may have changed subscription state. Swappable for tests.
var invalidatePlanCache = func(userID string) {
	if userID == "" {
		return
	}
	_ = cache.Delete(billing.PlanCacheKey(userID))
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
