package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CreatePortalSession mints a redirect into the provider's self-service
// billing portal for the user's customer. Users without a billing customer
// must subscribe first. An unconfigured merchant portal is surfaced as
// ErrPortalNotConfigured so callers can show setup instructions instead of a
// generic failure.
func (s *Service) CreatePortalSession(ctx context.Context, userID string) (*PortalSession, error) {
	_, customerID, err := s.GetCustomerByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrNoBillingCustomer
		}
		return nil, err
	}
	if customerID == "" {
		return nil, ErrNoBillingCustomer
	}

	sess, err := s.stripe.NewPortalSession(ctx, customerID, s.baseURL+"/dashboard/billing")
	if err != nil {
		if isPortalConfigError(err) {
			return nil, fmt.Errorf("%w: %s", ErrPortalNotConfigured, err.Error())
		}
		return nil, err
	}

	return &PortalSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// GetInvoiceURL resolves the retrievable location of an invoice, preferring
// the hosted HTML invoice over the PDF when both exist.
func (s *Service) GetInvoiceURL(ctx context.Context, invoiceID string) (*InvoiceURL, error) {
	id := strings.TrimSpace(invoiceID)
	if id == "" {
		return nil, errors.New("invoice id is required")
	}

	inv, err := s.stripe.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, err.Error())
	}

	url := inv.HostedInvoiceURL
	if url == "" {
		url = inv.InvoicePDF
	}
	if url == "" {
		return nil, ErrInvoiceURLUnavailable
	}

	return &InvoiceURL{
		InvoiceID: inv.ID,
		URL:       url,
		Status:    string(inv.Status),
	}, nil
}
