package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/launchbase-dev/launchbase/app/repository"
	"github.com/launchbase-dev/launchbase/internal/pkg/billing"
	"github.com/launchbase-dev/launchbase/internal/pkg/entitlements"
	"github.com/launchbase-dev/launchbase/internal/pkg/usercontext"
)

// HandleGetUserAccount returns account, plan and subscription information for
// the authenticated user.
func HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	repos := repository.GetGlobalRepositories()
	profile, err := repos.Profile.GetByUserID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load profile"})
	}

	var subscription fiber.Map
	sub, err := repos.Subscription.GetByUserID(userCtx.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}
	if sub != nil && sub.HasSubscription() {
		subscription = fiber.Map{
			"status":             sub.Status,
			"planName":           sub.PlanName,
			"interval":           sub.BillingInterval,
			"currentPeriodEnd":   formatTimePtr(sub.CurrentPeriodEnd),
			"cancelAtPeriodEnd":  sub.CancelAtPeriodEnd,
			"paymentMethodBrand": sub.PaymentMethodBrand,
			"paymentMethodLast4": sub.PaymentMethodLast4,
		}
	}

	plan := billing.EffectivePlan(sub)

	return c.JSON(fiber.Map{
		"userId":        profile.UserID,
		"email":         profile.Email,
		"fullName":      profile.FullName,
		"is_admin":      userCtx.IsAdmin,
		"status":        profile.Status,
		"authMethods":   profile.AuthMethods(),
		"created_at":    profile.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(profile.LastLoginAt),
		"plan":          plan,
		"features":      entitlements.FeaturesFor(plan),
		"subscription":  subscription,
	})
}
