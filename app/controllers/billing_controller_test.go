package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/launchbase-dev/launchbase/app/models"
	"github.com/launchbase-dev/launchbase/internal/pkg/billing"
)

// stubRepo is a hand-rolled billing.Repository. Only the lookups the
// handlers under test reach are configurable, everything else reports a
// missing row.
type stubRepo struct {
	profilesByUserID map[string]*models.Profile

	webhookCreated bool
	webhookStored  *models.WebhookEvent
	processedIDs   []uint
}

func (r *stubRepo) GetProfileByUserID(userID string) (*models.Profile, error) {
	if p, ok := r.profilesByUserID[userID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) GetProfileByEmail(email string) (*models.Profile, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) GetProfileByStripeCustomerID(customerID string) (*models.Profile, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) CreateCustomerAndProfile(userID, email, stripeCustomerID, fullName string) (*models.Profile, bool, bool, error) {
	id := stripeCustomerID
	return &models.Profile{UserID: userID, Email: email, StripeCustomerID: &id}, true, true, nil
}

func (r *stubRepo) UpdateStripeCustomerID(userID, stripeCustomerID string) error {
	return nil
}

func (r *stubRepo) UpsertSubscription(sub *models.Subscription) error {
	return nil
}

func (r *stubRepo) GetSubscriptionByUserID(userID string) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) FindActivePlanMapping(stripePriceID, interval string) (*models.PlanMapping, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if r.webhookStored != nil {
		return r.webhookCreated, r.webhookStored, nil
	}
	stored := *event
	stored.ID = 1
	return true, &stored, nil
}

func (r *stubRepo) MarkWebhookProcessed(id uint, processingError string) error {
	r.processedIDs = append(r.processedIDs, id)
	return nil
}

// stubStripe is a hand-rolled billing.StripeAPI returning canned responses.
type stubStripe struct {
	session    *stripe.CheckoutSession
	sessionErr error

	portal    *stripe.BillingPortalSession
	portalErr error

	invoice    *stripe.Invoice
	invoiceErr error
}

func (s *stubStripe) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	if s.session == nil {
		return nil, errors.New("no such session")
	}
	return s.session, nil
}

func (s *stubStripe) NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return nil, errors.New("not supported in stub")
}

func (s *stubStripe) NewCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	return nil, errors.New("not supported in stub")
}

func (s *stubStripe) ListSubscriptions(ctx context.Context, customerID string, limit int64) ([]*stripe.Subscription, error) {
	return nil, nil
}

func (s *stubStripe) GetPrice(ctx context.Context, id string) (*stripe.Price, error) {
	return nil, errors.New("no such price")
}

func (s *stubStripe) GetProduct(ctx context.Context, id string) (*stripe.Product, error) {
	return nil, errors.New("no such product")
}

func (s *stubStripe) NewPortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	if s.portalErr != nil {
		return nil, s.portalErr
	}
	if s.portal == nil {
		return nil, errors.New("no portal session")
	}
	return s.portal, nil
}

func (s *stubStripe) GetInvoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	if s.invoiceErr != nil {
		return nil, s.invoiceErr
	}
	if s.invoice == nil {
		return nil, errors.New("no such invoice")
	}
	return s.invoice, nil
}

// withStubBilling routes the handlers at a fake-backed billing service for
// the duration of the test.
func withStubBilling(t *testing.T, repo billing.Repository, api billing.StripeAPI) {
	t.Helper()
	prev := billingServiceFn
	billingServiceFn = func() (*billing.Service, error) {
		return billing.NewService(repo, api, "https://app.test"), nil
	}
	t.Cleanup(func() { billingServiceFn = prev })
}

func jsonRequest(method, target string, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func customerProfile(userID, email, customerID string) *models.Profile {
	return &models.Profile{
		UserID:           userID,
		Email:            email,
		StripeCustomerID: &customerID,
		Status:           models.STATUS_ACTIVE,
	}
}

func TestHandleVerifyCheckoutValidation(t *testing.T) {
	withStubBilling(t, &stubRepo{}, &stubStripe{})

	app := fiber.New()
	app.Post("/checkout/verify", HandleVerifyCheckout)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed json", "{not json", "Malformed JSON body"},
		{"missing session id", `{"userId":"user-1"}`, "sessionId is required"},
		{"missing user id", `{"sessionId":"cs_test_1"}`, "userId is required for authenticated verification"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(jsonRequest(http.MethodPost, "/checkout/verify", tt.body), -1)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

			body := decodeBody(t, resp)
			assert.Equal(t, tt.wantErr, body["error"])
		})
	}
}

func TestHandleVerifyCheckoutSessionUserMismatch(t *testing.T) {
	api := &stubStripe{
		session: &stripe.CheckoutSession{
			ID:            "cs_test_1",
			PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			Customer:      &stripe.Customer{ID: "cus_1"},
			CustomerDetails: &stripe.CheckoutSessionCustomerDetails{
				Email: "buyer@example.com",
			},
			Metadata: map[string]string{"user_id": "someone-else"},
		},
	}
	withStubBilling(t, &stubRepo{}, api)

	app := fiber.New()
	app.Post("/checkout/verify", HandleVerifyCheckout)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/checkout/verify", `{"sessionId":"cs_test_1","userId":"user-1"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Checkout session does not belong to this user", body["error"])
}

func TestHandleVerifyCheckoutUnpaidSession(t *testing.T) {
	api := &stubStripe{
		session: &stripe.CheckoutSession{
			ID:            "cs_test_1",
			PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		},
	}
	withStubBilling(t, &stubRepo{}, api)

	app := fiber.New()
	app.Post("/checkout/verify", HandleVerifyCheckout)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/checkout/verify", `{"sessionId":"cs_test_1","isGuest":true}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Payment not completed", body["error"])
}

func TestHandleVerifyCheckoutInvalidatesPlanCache(t *testing.T) {
	api := &stubStripe{
		session: &stripe.CheckoutSession{
			ID:            "cs_test_1",
			PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			Customer:      &stripe.Customer{ID: "cus_1"},
			CustomerDetails: &stripe.CheckoutSessionCustomerDetails{
				Email: "buyer@example.com",
			},
			Metadata: map[string]string{"user_id": "user-1"},
		},
	}
	withStubBilling(t, &stubRepo{}, api)

	var invalidated []string
	prev := invalidatePlanCache
	invalidatePlanCache = func(userID string) { invalidated = append(invalidated, userID) }
	t.Cleanup(func() { invalidatePlanCache = prev })

	app := fiber.New()
	app.Post("/checkout/verify", HandleVerifyCheckout)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/checkout/verify", `{"sessionId":"cs_test_1","userId":"user-1"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"user-1"}, invalidated, "a synced checkout must drop the memoized plan")
}

func TestHandleBillingPortalValidation(t *testing.T) {
	withStubBilling(t, &stubRepo{}, &stubStripe{})

	app := fiber.New()
	app.Post("/portal", HandleBillingPortal)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/portal", `{}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "userId is required", body["error"])
}

func TestHandleBillingPortalNoCustomer(t *testing.T) {
	withStubBilling(t, &stubRepo{}, &stubStripe{})

	app := fiber.New()
	app.Post("/portal", HandleBillingPortal)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/portal", `{"userId":"user-1"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "No billing customer on file, subscribe first", body["error"])
}

func TestHandleBillingPortalSuccess(t *testing.T) {
	repo := &stubRepo{profilesByUserID: map[string]*models.Profile{
		"user-1": customerProfile("user-1", "alice@example.com", "cus_1"),
	}}
	api := &stubStripe{portal: &stripe.BillingPortalSession{
		ID:  "bps_test_1",
		URL: "https://billing.stripe.test/session",
	}}
	withStubBilling(t, repo, api)

	app := fiber.New()
	app.Post("/portal", HandleBillingPortal)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/portal", `{"userId":"user-1"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://billing.stripe.test/session", body["url"])
	assert.Equal(t, "bps_test_1", body["sessionId"])
}

func TestHandleBillingPortalNotConfigured(t *testing.T) {
	repo := &stubRepo{profilesByUserID: map[string]*models.Profile{
		"user-1": customerProfile("user-1", "alice@example.com", "cus_1"),
	}}
	api := &stubStripe{portalErr: &stripe.Error{
		Msg: "No configuration provided and your test mode default configuration has not been created.",
	}}
	withStubBilling(t, repo, api)

	app := fiber.New()
	app.Post("/portal", HandleBillingPortal)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/portal", `{"userId":"user-1"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Billing portal is not configured", body["error"])
	assert.Equal(t, "configuration_error", body["type"])
	assert.NotEmpty(t, body["details"])
}

func TestHandleInvoiceURL(t *testing.T) {
	api := &stubStripe{invoice: &stripe.Invoice{
		ID:               "in_test_1",
		Status:           stripe.InvoiceStatusPaid,
		HostedInvoiceURL: "https://invoice.stripe.test/hosted",
		InvoicePDF:       "https://invoice.stripe.test/pdf",
	}}
	withStubBilling(t, &stubRepo{}, api)

	app := fiber.New()
	app.Post("/invoice", HandleInvoiceURL)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/invoice", `{"invoiceId":"in_test_1"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://invoice.stripe.test/hosted", body["invoiceUrl"])
	assert.Equal(t, "in_test_1", body["invoiceId"])
	assert.Equal(t, "paid", body["status"])
}

func TestHandleInvoiceURLErrors(t *testing.T) {
	withStubBilling(t, &stubRepo{}, &stubStripe{invoiceErr: errors.New("resource_missing")})

	app := fiber.New()
	app.Post("/invoice", HandleInvoiceURL)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/invoice", `{}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "invoiceId is required", body["error"])

	resp, err = app.Test(jsonRequest(http.MethodPost, "/invoice", `{"invoiceId":"in_missing"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "Invoice not found", body["error"])
}

func TestHandleStripeWebhookInvalidSignature(t *testing.T) {
	repo := &stubRepo{}
	withStubBilling(t, repo, &stubStripe{})

	app := fiber.New()
	app.Post("/webhooks/stripe", HandleStripeWebhook)

	req := jsonRequest(http.MethodPost, "/webhooks/stripe", `{"id":"evt_1","type":"customer.subscription.updated"}`)
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "invalid_signature", body["error"])
	assert.Equal(t, []uint{1}, repo.processedIDs)
}

func TestHandleStripeWebhookDuplicateDelivery(t *testing.T) {
	repo := &stubRepo{
		webhookCreated: false,
		webhookStored:  &models.WebhookEvent{ID: 7},
	}
	withStubBilling(t, repo, &stubStripe{})

	app := fiber.New()
	app.Post("/webhooks/stripe", HandleStripeWebhook)

	req := jsonRequest(http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`)
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["duplicate"])
	assert.Empty(t, repo.processedIDs)
}
