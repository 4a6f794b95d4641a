package billing

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/launchbase-dev/launchbase/app/models"
)

// StripeAPI is the slice of the Stripe SDK the billing service depends on.
// The production implementation lives in internal/pkg/payments; tests supply
// fakes, so nothing in this package ever touches a global SDK key.
type StripeAPI interface {
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
	NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	ListSubscriptions(ctx context.Context, customerID string, limit int64) ([]*stripe.Subscription, error)
	GetPrice(ctx context.Context, id string) (*stripe.Price, error)
	GetProduct(ctx context.Context, id string) (*stripe.Product, error)
	NewPortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error)
	GetInvoice(ctx context.Context, id string) (*stripe.Invoice, error)
}

// PaymentMethodSummary carries the displayable part of the default payment
// method, never the full card details.
type PaymentMethodSummary struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

// SubscriptionData is the synchronized subscription shape returned to
// callers. Period timestamps marshal as RFC3339.
type SubscriptionData struct {
	Status             string                `json:"status"`
	SubscriptionID     string                `json:"subscriptionId,omitempty"`
	PriceID            string                `json:"priceId,omitempty"`
	PlanName           string                `json:"planName,omitempty"`
	InternalPlan       string                `json:"plan"`
	BillingInterval    string                `json:"interval,omitempty"`
	Currency           string                `json:"currency,omitempty"`
	UnitAmount         int64                 `json:"unitAmount,omitempty"`
	CurrentPeriodStart *time.Time            `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time            `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool                  `json:"cancelAtPeriodEnd"`
	PaymentMethod      *PaymentMethodSummary `json:"paymentMethod,omitempty"`
}

// CustomerProvisioning reports the outcome of the atomic customer+profile
// creation. A repeated call with identical arguments observes both flags
// false and the same profile.
type CustomerProvisioning struct {
	Profile       *models.Profile
	IsNewCustomer bool
	IsNewProfile  bool
}

// CustomerInfo identifies the resolved billing customer in responses.
type CustomerInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AccountStatus tells a guest buyer whether an account with their email
// already exists and can claim the purchase.
type AccountStatus struct {
	ExistingAccount bool `json:"existingAccount"`
	CanClaim        bool `json:"canClaim"`
}

// VerifyCheckoutInput is the request to the checkout verifier.
type VerifyCheckoutInput struct {
	SessionID string
	UserID    string
	IsGuest   bool
}

// CheckoutVerification is the verifier's response for both branches.
type CheckoutVerification struct {
	SessionID     string            `json:"sessionId"`
	Subscription  *SubscriptionData `json:"subscription"`
	Customer      CustomerInfo      `json:"customer"`
	IsGuest       bool              `json:"isGuest"`
	AccountStatus *AccountStatus    `json:"accountStatus,omitempty"`
}

// CheckoutSessionInput is the request to mint a new checkout session.
// UserID empty means guest checkout.
type CheckoutSessionInput struct {
	PriceID  string
	UserID   string
	Email    string
	FullName string
}

// CheckoutSessionResult carries the provider-hosted checkout redirect.
type CheckoutSessionResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// PortalSession carries the provider-hosted billing portal redirect.
type PortalSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// InvoiceURL is the resolved invoice location. URL prefers the hosted HTML
// invoice over the PDF when both exist.
type InvoiceURL struct {
	InvoiceID string `json:"invoiceId"`
	URL       string `json:"invoiceUrl"`
	Status    string `json:"status"`
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
