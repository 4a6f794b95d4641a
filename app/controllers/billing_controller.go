package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/launchbase-dev/launchbase/app/models"
	"github.com/launchbase-dev/launchbase/internal/pkg/billing"
	"github.com/launchbase-dev/launchbase/internal/pkg/env"
	"github.com/launchbase-dev/launchbase/internal/pkg/payments"
)

type portalRequest struct {
	UserID string `json:"userId"`
}

type invoiceRequest struct {
	InvoiceID string `json:"invoiceId"`
}

// HandleBillingPortal mints a self-service billing portal redirect for a user
// with an existing billing customer.
func HandleBillingPortal(c *fiber.Ctx) error {
	var req portalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed JSON body"})
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required"})
	}

	svc, err := getBillingService()
	if err != nil {
		log.Printf("portal: service unavailable: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Billing service unavailable"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	portal, err := svc.CreatePortalSession(ctx, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNoBillingCustomer):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No billing customer on file, subscribe first"})
		case errors.Is(err, billing.ErrPortalNotConfigured):
			log.Printf("portal not configured for user %s: %v", req.UserID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Billing portal is not configured",
				"details": "Enable the customer portal in the Stripe dashboard and save its configuration",
				"type":    "configuration_error",
			})
		default:
			log.Printf("portal session failed for user %s: %v", req.UserID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create portal session"})
		}
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"url":       portal.URL,
		"sessionId": portal.SessionID,
	})
}

// HandleInvoiceURL resolves the viewable URL for an invoice, preferring the
// hosted HTML invoice over the PDF.
func HandleInvoiceURL(c *fiber.Ctx) error {
	var req invoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Malformed JSON body"})
	}

	req.InvoiceID = strings.TrimSpace(req.InvoiceID)
	if req.InvoiceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invoiceId is required"})
	}

	svc, err := getBillingService()
	if err != nil {
		log.Printf("invoice: service unavailable: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Billing service unavailable"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	invoice, err := svc.GetInvoiceURL(ctx, req.InvoiceID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvoiceNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Invoice not found"})
		case errors.Is(err, billing.ErrInvoiceURLUnavailable):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Invoice has no viewable URL"})
		default:
			log.Printf("invoice lookup failed for %s: %v", req.InvoiceID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not resolve invoice"})
		}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"invoiceUrl": invoice.URL,
		"invoiceId":  invoice.InvoiceID,
		"status":     invoice.Status,
	})
}

// HandleStripeWebhook verifies, deduplicates and processes provider webhook
// events. Duplicate deliveries short-circuit before any sync work.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	svc, err := getBillingService()
	if err != nil {
		log.Printf("webhook: service unavailable: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_unavailable"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	event, verifyErr := payments.VerifyWebhookEvent(rawBody, signature, secret)
	signatureValid := verifyErr == nil

	eventID := ""
	eventType := ""
	if event != nil {
		eventID = event.ID
		eventType = string(event.Type)
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	syncErr := svc.HandleWebhookEvent(ctx, event)
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, syncErr)
	if syncErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_sync_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
