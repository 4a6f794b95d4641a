package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/launchbase-dev/launchbase/app/controllers"
	"github.com/launchbase-dev/launchbase/app/repository"
	"github.com/launchbase-dev/launchbase/internal/pkg/billing"
	"github.com/launchbase-dev/launchbase/internal/pkg/cache"
	"github.com/launchbase-dev/launchbase/internal/pkg/entitlements"
	"github.com/launchbase-dev/launchbase/internal/pkg/session"
	"github.com/launchbase-dev/launchbase/internal/pkg/usercontext"
)

// planCacheTTL bounds how stale a cached plan may get when a sync happens
// outside a user request (webhooks have no session to invalidate).
const planCacheTTL = 5 * time.Minute

// UserContextMiddleware sets up the complete user context for every request
// This centralizes user session handling and eliminates code duplication
func UserContextMiddleware(c *fiber.Ctx) error {
	// Avoid interfering with Goth/Fiber session handling on OAuth routes.
	// Goth uses its own fiber session store and relies on per-request locals.
	// We skip our app session on /auth/* to prevent cross-store collisions.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}
	// Get session with error handling
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		// On error: set as anonymous user
		c.Locals("USER_CONTEXT", usercontext.UserContext{
			IsLoggedIn: false,
			IsAdmin:    false,
		})
		c.Locals(controllers.FROM_PROTECTED, false)
		c.Locals(controllers.USER_IS_ADMIN, false)
		return c.Next()
	}

	// Get user ID from session
	userID := sess.Get(controllers.USER_ID)
	if userID == nil {
		// Anonymous user - no session data
		c.Locals("USER_CONTEXT", usercontext.UserContext{
			IsLoggedIn: false,
			IsAdmin:    false,
		})
		c.Locals(controllers.FROM_PROTECTED, false)
		c.Locals(controllers.USER_IS_ADMIN, false)
		return c.Next()
	}

	// User is logged in - get additional data
	email := session.GetSessionValue(c, controllers.USER_EMAIL)
	isAdmin := sess.Get(controllers.USER_IS_ADMIN)

	// Determine plan, cache-first. Login and checkout verification delete
	// the cache entry; webhook-driven syncs are picked up when the TTL runs
	// out.
	plan, cacheErr := cache.Get(billing.PlanCacheKey(userID.(string)))
	if cacheErr != nil || plan == "" {
		plan = string(entitlements.PlanFree)
		repo := repository.GetGlobalFactory().GetSubscriptionRepository()
		if sub, err := repo.GetByUserID(userID.(string)); err == nil {
			plan = string(billing.EffectivePlan(sub))
		}
		_ = cache.Set(billing.PlanCacheKey(userID.(string)), plan, planCacheTTL)
	}
	// Set complete user context
	userCtx := usercontext.UserContext{
		UserID:     userID.(string),
		Email:      email,
		IsLoggedIn: true,
		IsAdmin:    isAdmin != nil && isAdmin.(bool),
		Plan:       plan,
	}
	c.Locals("USER_CONTEXT", userCtx)

	c.Locals(controllers.FROM_PROTECTED, true)
	c.Locals(controllers.USER_EMAIL, email)
	c.Locals(controllers.USER_ID, userID.(string))
	c.Locals(controllers.USER_IS_ADMIN, userCtx.IsAdmin)

	return c.Next()
}
