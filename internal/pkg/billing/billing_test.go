package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/launchbase-dev/launchbase/app/models"
)

// fakeRepo is an in-memory Repository mirroring the constraint semantics of
// the real gorm implementation (unique user_id, unique stripe_customer_id,
// unique provider+event).
type fakeRepo struct {
	profiles map[string]*models.Profile      // keyed by user id
	subs     map[string]*models.Subscription // keyed by stripe customer id
	mappings []*models.PlanMapping
	webhooks map[string]*models.WebhookEvent

	upsertCount     int
	customerPatches int
	nextEventID     uint

	profileByEmailErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		profiles: map[string]*models.Profile{},
		subs:     map[string]*models.Subscription{},
		webhooks: map[string]*models.WebhookEvent{},
	}
}

func (r *fakeRepo) GetProfileByUserID(userID string) (*models.Profile, error) {
	if p, ok := r.profiles[userID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetProfileByEmail(email string) (*models.Profile, error) {
	if r.profileByEmailErr != nil {
		return nil, r.profileByEmailErr
	}
	for _, p := range r.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetProfileByStripeCustomerID(customerID string) (*models.Profile, error) {
	for _, p := range r.profiles {
		if p.StripeCustomerID != nil && *p.StripeCustomerID == customerID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) CreateCustomerAndProfile(userID, email, stripeCustomerID, fullName string) (*models.Profile, bool, bool, error) {
	newProfile := false
	newCustomer := false

	p, ok := r.profiles[userID]
	if !ok {
		p = &models.Profile{
			UserID:   userID,
			Email:    email,
			FullName: fullName,
			Role:     models.ROLE_USER,
			Status:   models.STATUS_ACTIVE,
		}
		r.profiles[userID] = p
		newProfile = true
	}
	if stripeCustomerID != "" && !p.HasStripeCustomer() {
		id := stripeCustomerID
		p.StripeCustomerID = &id
		newCustomer = true
	}
	return p, newCustomer, newProfile, nil
}

func (r *fakeRepo) UpdateStripeCustomerID(userID, stripeCustomerID string) error {
	p, ok := r.profiles[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.customerPatches++
	id := stripeCustomerID
	p.StripeCustomerID = &id
	return nil
}

func (r *fakeRepo) UpsertSubscription(sub *models.Subscription) error {
	r.upsertCount++
	copied := *sub
	r.subs[sub.StripeCustomerID] = &copied
	return nil
}

func (r *fakeRepo) GetSubscriptionByUserID(userID string) (*models.Subscription, error) {
	for _, s := range r.subs {
		if s.UserID == userID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) FindActivePlanMapping(stripePriceID, interval string) (*models.PlanMapping, error) {
	for _, m := range r.mappings {
		if m.StripePriceID == stripePriceID && m.BillingInterval == interval && m.IsActive {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + ":" + event.ProviderEventID
	if stored, ok := r.webhooks[key]; ok {
		return false, stored, nil
	}
	r.nextEventID++
	event.ID = r.nextEventID
	r.webhooks[key] = event
	return true, event, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, e := range r.webhooks {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// fakeStripe is a canned-response StripeAPI.
type fakeStripe struct {
	checkoutSessions map[string]*stripe.CheckoutSession
	subscriptions    map[string][]*stripe.Subscription
	prices           map[string]*stripe.Price
	products         map[string]*stripe.Product
	invoices         map[string]*stripe.Invoice
	portalSession    *stripe.BillingPortalSession
	portalErr        error

	createdCustomers int
	createdSessions  int
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{
		checkoutSessions: map[string]*stripe.CheckoutSession{},
		subscriptions:    map[string][]*stripe.Subscription{},
		prices:           map[string]*stripe.Price{},
		products:         map[string]*stripe.Product{},
		invoices:         map[string]*stripe.Invoice{},
	}
}

func (f *fakeStripe) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	if s, ok := f.checkoutSessions[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no such checkout session: %s", id)
}

func (f *fakeStripe) NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.createdSessions++
	return &stripe.CheckoutSession{
		ID:  fmt.Sprintf("cs_test_%d", f.createdSessions),
		URL: "https://checkout.stripe.test/pay",
	}, nil
}

func (f *fakeStripe) NewCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	f.createdCustomers++
	email := ""
	if params.Email != nil {
		email = *params.Email
	}
	return &stripe.Customer{
		ID:    fmt.Sprintf("cus_test_%d", f.createdCustomers),
		Email: email,
	}, nil
}

func (f *fakeStripe) ListSubscriptions(ctx context.Context, customerID string, limit int64) ([]*stripe.Subscription, error) {
	return f.subscriptions[customerID], nil
}

func (f *fakeStripe) GetPrice(ctx context.Context, id string) (*stripe.Price, error) {
	if p, ok := f.prices[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no such price: %s", id)
}

func (f *fakeStripe) GetProduct(ctx context.Context, id string) (*stripe.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no such product: %s", id)
}

func (f *fakeStripe) NewPortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	if f.portalErr != nil {
		return nil, f.portalErr
	}
	if f.portalSession != nil {
		return f.portalSession, nil
	}
	return &stripe.BillingPortalSession{ID: "bps_test_1", URL: "https://billing.stripe.test/session"}, nil
}

func (f *fakeStripe) GetInvoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	if inv, ok := f.invoices[id]; ok {
		return inv, nil
	}
	return nil, fmt.Errorf("no such invoice: %s", id)
}

func newTestService(repo *fakeRepo, api *fakeStripe) *Service {
	svc := NewService(repo, api, "https://app.launchbase.test")
	return svc
}

// proSubscription builds a provider subscription with one billable item.
func proSubscription(periodStart, periodEnd int64) *stripe.Subscription {
	return &stripe.Subscription{
		ID:     "sub_test_1",
		Status: stripe.SubscriptionStatusActive,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					CurrentPeriodStart: periodStart,
					CurrentPeriodEnd:   periodEnd,
					Price:              &stripe.Price{ID: "price_pro_month"},
				},
			},
		},
		DefaultPaymentMethod: &stripe.PaymentMethod{
			Card: &stripe.PaymentMethodCard{
				Brand: stripe.PaymentMethodCardBrandVisa,
				Last4: "4242",
			},
		},
	}
}

func proPrice() *stripe.Price {
	return &stripe.Price{
		ID:         "price_pro_month",
		UnitAmount: 1900,
		Currency:   stripe.CurrencyUSD,
		Recurring: &stripe.PriceRecurring{
			Interval: stripe.PriceRecurringIntervalMonth,
		},
		Product: &stripe.Product{ID: "prod_pro"},
	}
}
