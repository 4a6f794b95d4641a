package controllers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/launchbase-dev/launchbase/app/repository"
)

const adminWebhookEventLimit = 200

// webhookEventsFn resolves the webhook event repository for the admin
// handlers. Tests swap it for a fake.
var webhookEventsFn = func() repository.WebhookEventRepository {
	return repository.GetGlobalRepositories().WebhookEvent
}

// HandleAdminListWebhookEvents returns the newest entries of the webhook
// audit trail for operational debugging. Payload bodies are withheld; the
// audit fields are enough to spot failed or unsigned deliveries.
func HandleAdminListWebhookEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit > adminWebhookEventLimit {
		limit = adminWebhookEventLimit
	}

	events, err := webhookEventsFn().ListRecent(limit)
	if err != nil {
		log.Printf("webhook event listing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not list webhook events"})
	}

	items := make([]fiber.Map, 0, len(events))
	for _, ev := range events {
		items = append(items, fiber.Map{
			"id":              ev.ID,
			"provider":        ev.Provider,
			"providerEventId": ev.ProviderEventID,
			"eventType":       ev.EventType,
			"signatureValid":  ev.SignatureValid,
			"processedAt":     formatTimePtr(ev.ProcessedAt),
			"processingError": ev.ProcessingError,
			"createdAt":       ev.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(fiber.Map{
		"count":  len(items),
		"events": items,
	})
}
