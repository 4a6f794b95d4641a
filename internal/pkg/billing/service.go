package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/launchbase-dev/launchbase/app/models"
)

// Service reconciles Stripe state with local profile and subscription
// records. All dependencies are injected; handlers construct it once per
// process and share it across requests (it holds no mutable state).
type Service struct {
	repo    Repository
	stripe  StripeAPI
	baseURL string

	now func() time.Time
}

// NewService creates a billing service. baseURL is the public application
// URL used for portal return and checkout redirect targets.
func NewService(repo Repository, stripeAPI StripeAPI, baseURL string) *Service {
	return &Service{
		repo:    repo,
		stripe:  stripeAPI,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, stripeAPI StripeAPI, baseURL string) *Service {
	return NewService(NewRepository(db), stripeAPI, baseURL)
}

// GetCustomerByUserID looks up the profile for a user and returns its billing
// customer ID, which may be empty even on success (no purchase yet).
func (s *Service) GetCustomerByUserID(ctx context.Context, userID string) (*models.Profile, string, error) {
	_ = ctx
	id := strings.TrimSpace(userID)
	if id == "" {
		return nil, "", errors.New("user id is required")
	}
	profile, err := s.repo.GetProfileByUserID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrProfileNotFound
		}
		return nil, "", err
	}
	customerID := ""
	if profile.StripeCustomerID != nil {
		customerID = *profile.StripeCustomerID
	}
	return profile, customerID, nil
}

// CreateStripeCustomer mints a new billing customer at the provider. Nothing
// is persisted locally.
func (s *Service) CreateStripeCustomer(ctx context.Context, email, name string, metadata map[string]string) (*stripe.Customer, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.New("email is required")
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(strings.TrimSpace(email)),
	}
	if n := strings.TrimSpace(name); n != "" {
		params.Name = stripe.String(n)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	return s.stripe.NewCustomer(ctx, params)
}

// CreateCustomerAndProfile performs the atomic profile+customer upsert. Safe
// to call repeatedly with the same arguments; the second call observes
// "already existed" instead of erroring or duplicating.
func (s *Service) CreateCustomerAndProfile(ctx context.Context, userID, email, stripeCustomerID, fullName string) (*CustomerProvisioning, error) {
	_ = ctx
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(email) == "" {
		return nil, errors.New("user id and email are required")
	}
	profile, newCustomer, newProfile, err := s.repo.CreateCustomerAndProfile(
		strings.TrimSpace(userID), email, strings.TrimSpace(stripeCustomerID), fullName)
	if err != nil {
		return nil, err
	}
	return &CustomerProvisioning{
		Profile:       profile,
		IsNewCustomer: newCustomer,
		IsNewProfile:  newProfile,
	}, nil
}

// UpdateCustomerStripeID patches only the billing customer field on an
// existing profile; fails with ErrProfileNotFound when no row matches.
func (s *Service) UpdateCustomerStripeID(ctx context.Context, userID, stripeCustomerID string) error {
	_ = ctx
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(stripeCustomerID) == "" {
		return errors.New("user id and stripe customer id are required")
	}
	err := s.repo.UpdateStripeCustomerID(strings.TrimSpace(userID), strings.TrimSpace(stripeCustomerID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProfileNotFound
	}
	return err
}

// EnsureCustomer resolves the user's billing customer, creating and linking
// one when absent. An existing profile without a customer gets the new
// customer patched in; a missing profile is provisioned alongside it.
func (s *Service) EnsureCustomer(ctx context.Context, userID, email, fullName string) (string, error) {
	profile, customerID, err := s.GetCustomerByUserID(ctx, userID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}

	cust, err := s.CreateStripeCustomer(ctx, email, fullName, map[string]string{"user_id": userID})
	if err != nil {
		return "", err
	}
	if profile != nil {
		if err := s.UpdateCustomerStripeID(ctx, userID, cust.ID); err != nil {
			return "", err
		}
		return cust.ID, nil
	}
	if _, err := s.CreateCustomerAndProfile(ctx, userID, email, cust.ID, fullName); err != nil {
		return "", err
	}
	return cust.ID, nil
}

// GetSubscriptionByUserID reads the local mirror without touching the
// provider.
func (s *Service) GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	_ = ctx
	sub, err := s.repo.GetSubscriptionByUserID(strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// RecordWebhookEvent persists webhook payloads idempotently. The returned
// bool reports whether the event was newly stored; duplicates are not.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook event id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
