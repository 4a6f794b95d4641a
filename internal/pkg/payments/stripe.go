package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/launchbase-dev/launchbase/internal/pkg/env"
)

// Client wraps the Stripe SDK behind an injectable value so handlers and
// services never touch the global stripe.Key. Construct once per process and
// pass it down.
type Client struct {
	api *client.API
}

// New creates a Stripe client for the given secret key.
func New(secretKey string) (*Client, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, errors.New("stripe secret key is required")
	}
	return &Client{api: client.New(key, nil)}, nil
}

// NewFromEnv creates a Stripe client from STRIPE_SECRET_KEY.
func NewFromEnv() (*Client, error) {
	return New(env.GetEnv("STRIPE_SECRET_KEY", ""))
}

// GetCheckoutSession retrieves a checkout session with the relations the
// verifier needs already expanded.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("customer")
	params.AddExpand("subscription")
	params.AddExpand("subscription.default_payment_method")
	return c.api.CheckoutSessions.Get(id, params)
}

// NewCheckoutSession creates a checkout session.
func (c *Client) NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return c.api.CheckoutSessions.New(params)
}

// NewCustomer mints a new billing customer at the provider. Nothing is
// persisted locally; that is the caller's responsibility.
func (c *Client) NewCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	params.Context = ctx
	return c.api.Customers.New(params)
}

// ListSubscriptions returns up to limit subscriptions for a customer, newest
// first, across all statuses, with the default payment method expanded.
func (c *Client) ListSubscriptions(ctx context.Context, customerID string, limit int64) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(limit)
	params.AddExpand("data.default_payment_method")

	var subs []*stripe.Subscription
	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		subs = append(subs, iter.Subscription())
		if int64(len(subs)) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

// GetPrice retrieves a price by ID.
func (c *Client) GetPrice(ctx context.Context, id string) (*stripe.Price, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx
	return c.api.Prices.Get(id, params)
}

// GetProduct retrieves a product by ID.
func (c *Client) GetProduct(ctx context.Context, id string) (*stripe.Product, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx
	return c.api.Products.Get(id, params)
}

// NewPortalSession creates a self-service billing portal session for the
// customer, returning to returnURL when the user is done.
func (c *Client) NewPortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	return c.api.BillingPortalSessions.New(params)
}

// GetInvoice retrieves an invoice by ID.
func (c *Client) GetInvoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	return c.api.Invoices.Get(id, params)
}

// VerifyWebhookEvent checks the Stripe-Signature header against the signing
// secret and returns the parsed event. API version drift between the SDK and
// the dashboard is tolerated; the payload shapes we read are stable.
func VerifyWebhookEvent(payload []byte, signatureHeader, webhookSecret string) (*stripe.Event, error) {
	if strings.TrimSpace(signatureHeader) == "" || strings.TrimSpace(webhookSecret) == "" {
		return nil, errors.New("missing webhook signature or secret")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}
