package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/launchbase-dev/launchbase/app/models"
	"github.com/launchbase-dev/launchbase/internal/pkg/entitlements"
)

// periodFallback is substituted when the provider omits or mangles a
// current-period timestamp, so a malformed payload cannot block checkout
// completion. The locally fabricated expiry is a known approximation.
const periodFallback = 30 * 24 * time.Hour

// SyncCustomerData is the single reconciliation primitive: it fetches the
// authoritative subscription state for a billing customer and overwrites the
// local mirror wholesale. Concurrent calls may race but always leave the
// mirror in some valid recent state (last write wins, no sequencing token).
func (s *Service) SyncCustomerData(ctx context.Context, stripeCustomerID string) (*SubscriptionData, error) {
	customerID := strings.TrimSpace(stripeCustomerID)
	if customerID == "" {
		return nil, errors.New("stripe customer id is required")
	}

	subs, err := s.stripe.ListSubscriptions(ctx, customerID, 1)
	if err != nil {
		return nil, err
	}

	// Backfill the owning user when a profile already claimed this customer;
	// guests have no profile yet and sync with an empty user id.
	userID := ""
	if profile, err := s.repo.GetProfileByStripeCustomerID(customerID); err == nil {
		userID = profile.UserID
	}

	if len(subs) == 0 {
		record := &models.Subscription{
			UserID:           userID,
			StripeCustomerID: customerID,
			Status:           models.SubscriptionStatusNone,
			InternalPlan:     string(entitlements.PlanFree),
			BillingInterval:  models.BillingIntervalUnknown,
		}
		if err := s.repo.UpsertSubscription(record); err != nil {
			return nil, err
		}
		return &SubscriptionData{
			Status:       models.SubscriptionStatusNone,
			InternalPlan: string(entitlements.PlanFree),
		}, nil
	}

	// Only the most recent subscription is kept; customers holding several
	// concurrent subscriptions have all but the newest ignored here.
	data, err := s.subscriptionData(ctx, subs[0], true)
	if err != nil {
		return nil, err
	}

	record := &models.Subscription{
		UserID:               userID,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: data.SubscriptionID,
		Status:               data.Status,
		PriceID:              data.PriceID,
		PlanName:             data.PlanName,
		InternalPlan:         data.InternalPlan,
		BillingInterval:      data.BillingInterval,
		Currency:             data.Currency,
		UnitAmount:           data.UnitAmount,
		CurrentPeriodStart:   data.CurrentPeriodStart,
		CurrentPeriodEnd:     data.CurrentPeriodEnd,
		CancelAtPeriodEnd:    data.CancelAtPeriodEnd,
	}
	if data.PaymentMethod != nil {
		record.PaymentMethodBrand = data.PaymentMethod.Brand
		record.PaymentMethodLast4 = data.PaymentMethod.Last4
	}
	if err := s.repo.UpsertSubscription(record); err != nil {
		return nil, err
	}
	return data, nil
}

// subscriptionData normalizes a provider subscription into the local shape.
// With refetchPrice, price and product are re-resolved through dedicated
// provider calls; otherwise the embedded objects are used (guest fast path).
func (s *Service) subscriptionData(ctx context.Context, sub *stripe.Subscription, refetchPrice bool) (*SubscriptionData, error) {
	if sub == nil {
		return nil, errors.New("subscription is nil")
	}

	data := &SubscriptionData{
		Status:            subscriptionStatus(sub.Status),
		SubscriptionID:    sub.ID,
		InternalPlan:      string(entitlements.PlanFree),
		BillingInterval:   models.BillingIntervalUnknown,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}

	var item *stripe.SubscriptionItem
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item = sub.Items.Data[0]
	}

	// Item-level period boundaries are authoritative, not the subscription
	// object itself.
	var startUnix, endUnix int64
	if item != nil {
		startUnix = item.CurrentPeriodStart
		endUnix = item.CurrentPeriodEnd
	}
	nowUTC := s.now().UTC()
	data.CurrentPeriodStart = unixOr(startUnix, nowUTC)
	data.CurrentPeriodEnd = unixOr(endUnix, nowUTC.Add(periodFallback))

	price := (*stripe.Price)(nil)
	if item != nil {
		price = item.Price
	}
	if price != nil && refetchPrice {
		if fetched, err := s.stripe.GetPrice(ctx, price.ID); err == nil {
			price = fetched
		} else {
			return nil, err
		}
	}
	if price != nil {
		data.PriceID = price.ID
		data.UnitAmount = price.UnitAmount
		data.Currency = string(price.Currency)
		if price.Recurring != nil {
			data.BillingInterval = normalizeInterval(string(price.Recurring.Interval))
		}
		if price.Product != nil {
			if product, err := s.stripe.GetProduct(ctx, price.Product.ID); err == nil {
				data.PlanName = product.Name
			} else if refetchPrice {
				return nil, err
			}
		}
		data.InternalPlan = s.resolvePlan(price.ID, data.BillingInterval)
	}

	if pm := sub.DefaultPaymentMethod; pm != nil && pm.Card != nil {
		data.PaymentMethod = &PaymentMethodSummary{
			Brand: string(pm.Card.Brand),
			Last4: pm.Card.Last4,
		}
	}

	return data, nil
}

// resolvePlan maps a price ID onto an internal plan via the plan mapping
// table, preferring an exact interval match and falling back to "unknown"
// interval mappings, then to free.
func (s *Service) resolvePlan(priceID, interval string) string {
	if strings.TrimSpace(priceID) == "" {
		return string(entitlements.PlanFree)
	}
	if m, err := s.repo.FindActivePlanMapping(priceID, interval); err == nil {
		return string(entitlements.Normalize(m.InternalPlan))
	}
	if m, err := s.repo.FindActivePlanMapping(priceID, models.BillingIntervalUnknown); err == nil {
		return string(entitlements.Normalize(m.InternalPlan))
	}
	return string(entitlements.PlanFree)
}

func unixOr(unix int64, fallback time.Time) *time.Time {
	if unix <= 0 {
		return &fallback
	}
	t := time.Unix(unix, 0).UTC()
	return &t
}

// HandleWebhookEvent funnels every tracked provider event through the same
// sync primitive keyed on the event's customer.
func (s *Service) HandleWebhookEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil {
		return errors.New("event is nil")
	}
	if !isTrackedEvent(string(event.Type)) {
		return nil
	}

	var payload struct {
		Customer string `json:"customer"`
	}
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return err
	}
	if strings.TrimSpace(payload.Customer) == "" {
		return errors.New("webhook payload missing customer")
	}

	_, err := s.SyncCustomerData(ctx, payload.Customer)
	return err
}

// isTrackedEvent reports whether an event type affects subscription state we
// mirror locally.
func isTrackedEvent(eventType string) bool {
	switch eventType {
	case "checkout.session.completed",
		"customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted",
		"customer.subscription.paused",
		"customer.subscription.resumed",
		"customer.subscription.trial_will_end",
		"invoice.paid",
		"invoice.payment_failed",
		"invoice.payment_action_required":
		return true
	default:
		return false
	}
}
