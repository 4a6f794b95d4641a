package billing

import (
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v82"
)

var (
	// ErrProfileNotFound signals that no profile row exists for the user.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrNoBillingCustomer signals that the user has no billing customer yet
	// and must subscribe first.
	ErrNoBillingCustomer = errors.New("no billing customer on file")
	// ErrPaymentIncomplete signals a checkout session whose payment status is
	// not "paid".
	ErrPaymentIncomplete = errors.New("payment has not been completed")
	// ErrCustomerUnresolvable signals a paid session without a resolvable
	// customer identity or email.
	ErrCustomerUnresolvable = errors.New("could not resolve customer from checkout session")
	// ErrSessionUserMismatch signals that a session token was replayed by a
	// different user than the one it was minted for.
	ErrSessionUserMismatch = errors.New("checkout session does not belong to this user")
	// ErrPortalNotConfigured signals that the merchant account has no customer
	// portal configuration; callers show setup instructions instead of a
	// generic failure.
	ErrPortalNotConfigured = errors.New("billing portal is not configured")
	// ErrInvoiceNotFound signals an unknown invoice ID.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrInvoiceURLUnavailable signals an invoice with neither a hosted URL
	// nor a PDF.
	ErrInvoiceURLUnavailable = errors.New("invoice has no retrievable URL")
)

// isPortalConfigError detects the provider failure raised when the customer
// portal has never been configured for the merchant account.
func isPortalConfigError(err error) bool {
	if err == nil {
		return false
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return strings.Contains(stripeErr.Msg, "No configuration provided")
	}
	return strings.Contains(err.Error(), "No configuration provided")
}
