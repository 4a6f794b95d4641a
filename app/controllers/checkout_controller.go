package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/launchbase-dev/launchbase/internal/pkg/billing"
	"github.com/launchbase-dev/launchbase/internal/pkg/usercontext"
)

type verifyCheckoutRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	IsGuest   bool   `json:"isGuest"`
}

type createCheckoutRequest struct {
	PriceID string `json:"priceId"`
	Email   string `json:"email"`
}

// HandleVerifyCheckout confirms a completed checkout session, provisions the
// customer mapping for authenticated buyers and syncs the subscription mirror.
func HandleVerifyCheckout(c *fiber.Ctx) error {
	var req verifyCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed JSON body"})
	}

	req.SessionID = strings.TrimSpace(req.SessionID)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sessionId is required"})
	}
	if !req.IsGuest && req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required for authenticated verification"})
	}

	svc, err := getBillingService()
	if err != nil {
		log.Printf("checkout verify: service unavailable: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Billing service unavailable"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	result, err := svc.VerifyCheckout(ctx, billing.VerifyCheckoutInput{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		IsGuest:   req.IsGuest,
	})
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrSessionUserMismatch):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Checkout session does not belong to this user"})
		case errors.Is(err, billing.ErrPaymentIncomplete):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Payment not completed"})
		case errors.Is(err, billing.ErrCustomerUnresolvable):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Checkout session has no resolvable customer"})
		default:
			log.Printf("checkout verify failed for session %s: %v", req.SessionID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Checkout verification failed"})
		}
	}

	// The sync may have upgraded the plan; drop the memoized one.
	if !req.IsGuest {
		invalidatePlanCache(req.UserID)
	}

	return c.JSON(result)
}

// HandleCreateCheckoutSession mints a provider-hosted checkout session for a
// price. Logged-in users get their existing billing customer attached; guests
// check out by email.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req createCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed JSON body"})
	}

	req.PriceID = strings.TrimSpace(req.PriceID)
	if req.PriceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "priceId is required"})
	}

	userCtx := usercontext.GetUserContext(c)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if userCtx.IsLoggedIn {
		email = userCtx.Email
	}
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required for guest checkout"})
	}

	svc, err := getBillingService()
	if err != nil {
		log.Printf("checkout session: service unavailable: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Billing service unavailable"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	in := billing.CheckoutSessionInput{
		PriceID: req.PriceID,
		Email:   email,
	}
	if userCtx.IsLoggedIn {
		in.UserID = userCtx.UserID
	}

	result, err := svc.CreateCheckoutSession(ctx, in)
	if err != nil {
		log.Printf("checkout session creation failed for price %s: %v", req.PriceID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create checkout session"})
	}

	return c.JSON(result)
}
