package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/launchbase-dev/launchbase/app/controllers"
	"github.com/launchbase-dev/launchbase/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Session auth
	v1.Post("/auth/register", controllers.HandleAuthRegister)
	v1.Post("/auth/login", controllers.HandleAuthLogin)
	v1.Post("/auth/logout", controllers.HandleAuthLogout)

	// Billing surface
	v1.Post("/checkout/verify", controllers.HandleVerifyCheckout)
	v1.Post("/checkout/session", controllers.HandleCreateCheckoutSession)
	v1.Post("/invoice", controllers.HandleInvoiceURL)
	v1.Post("/portal", controllers.HandleBillingPortal)

	// Account linking probe
	v1.Get("/auth/link/check", controllers.HandleLinkCheck)

	// Authenticated account info
	v1.Get("/user/account", middleware.RequireAPISessionAuth, controllers.HandleGetUserAccount)

	// Admin surface
	v1.Get("/admin/webhook-events", middleware.RequireAPISessionAuth, middleware.RequireAdmin, controllers.HandleAdminListWebhookEvents)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
