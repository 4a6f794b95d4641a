package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/launchbase-dev/launchbase/app/controllers"
	"github.com/launchbase-dev/launchbase/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Social OAuth
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	// Account linking confirmation (token-gated, see accountlink package).
	// GET serves the redirect target of the OAuth callback detour, POST the
	// explicit confirmation; the handler reads the token from either.
	app.Get("/auth/link/confirm", controllers.HandleLinkConfirm)
	app.Post("/auth/link/confirm", controllers.HandleLinkConfirm)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}
