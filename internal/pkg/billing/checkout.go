package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

// VerifyCheckout confirms a completed checkout session and reconciles it
// into local state. Authenticated callers get a full synchronization;
// guests get a read-only view plus a hint whether an existing account can
// claim the purchase.
func (s *Service) VerifyCheckout(ctx context.Context, in VerifyCheckoutInput) (*CheckoutVerification, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	sess, err := s.stripe.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, ErrPaymentIncomplete
	}

	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	email := sessionEmail(sess)
	if customerID == "" || email == "" {
		return nil, ErrCustomerUnresolvable
	}

	if in.IsGuest {
		return s.verifyGuest(ctx, sess, customerID, email)
	}
	return s.verifyAuthenticated(ctx, sess, customerID, email, strings.TrimSpace(in.UserID))
}

// verifyAuthenticated links the customer to the caller's profile and runs a
// full sync. The session must have been minted for this exact user;
// replaying another account's session token is an authorization failure.
func (s *Service) verifyAuthenticated(ctx context.Context, sess *stripe.CheckoutSession, customerID, email, userID string) (*CheckoutVerification, error) {
	if sess.Metadata["user_id"] != userID {
		return nil, ErrSessionUserMismatch
	}

	if _, err := s.CreateCustomerAndProfile(ctx, userID, email, customerID, ""); err != nil {
		return nil, fmt.Errorf("link billing customer: %w", err)
	}

	data, err := s.SyncCustomerData(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("sync customer data: %w", err)
	}

	return &CheckoutVerification{
		SessionID:    sess.ID,
		Subscription: data,
		Customer:     CustomerInfo{ID: customerID, Email: email},
		IsGuest:      false,
	}, nil
}

// verifyGuest resolves plan and period data straight from the session's
// expanded subscription (no local user row exists yet, nothing is
// persisted) and reports whether an account with the buyer's email already
// exists. The existence lookup is best-effort: an infrastructure failure
// drops the hint, never the verification.
func (s *Service) verifyGuest(ctx context.Context, sess *stripe.CheckoutSession, customerID, email string) (*CheckoutVerification, error) {
	var accountStatus *AccountStatus
	if _, err := s.repo.GetProfileByEmail(email); err == nil {
		accountStatus = &AccountStatus{ExistingAccount: true, CanClaim: true}
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		accountStatus = &AccountStatus{}
	}

	var data *SubscriptionData
	if sess.Subscription != nil {
		var err error
		data, err = s.subscriptionData(ctx, sess.Subscription, false)
		if err != nil {
			return nil, fmt.Errorf("resolve guest subscription: %w", err)
		}
	}

	return &CheckoutVerification{
		SessionID:     sess.ID,
		Subscription:  data,
		Customer:      CustomerInfo{ID: customerID, Email: email},
		IsGuest:       true,
		AccountStatus: accountStatus,
	}, nil
}

// CreateCheckoutSession mints a provider-hosted checkout session for a
// subscription price. Authenticated callers get their billing customer
// resolved (created on first purchase) and the user identity embedded in
// session and subscription metadata so the verifier can authorize later.
func (s *Service) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSessionResult, error) {
	priceID := strings.TrimSpace(in.PriceID)
	if priceID == "" {
		return nil, errors.New("price id is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.baseURL + "/pricing"),
	}

	userID := strings.TrimSpace(in.UserID)
	if userID != "" {
		customerID, err := s.EnsureCustomer(ctx, userID, in.Email, in.FullName)
		if err != nil {
			return nil, fmt.Errorf("ensure billing customer: %w", err)
		}
		params.Customer = stripe.String(customerID)
		params.AddMetadata("user_id", userID)
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID},
		}
	} else if email := strings.TrimSpace(in.Email); email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	sess, err := s.stripe.NewCheckoutSession(ctx, params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSessionResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// sessionEmail resolves the buyer email from the richest available source.
func sessionEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return strings.ToLower(sess.CustomerDetails.Email)
	}
	if sess.Customer != nil && sess.Customer.Email != "" {
		return strings.ToLower(sess.Customer.Email)
	}
	return strings.ToLower(sess.CustomerEmail)
}
