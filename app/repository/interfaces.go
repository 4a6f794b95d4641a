package repository

import (
	"gorm.io/gorm"

	"github.com/launchbase-dev/launchbase/app/models"
)

// ProfileRepository defines data access for profiles and their linked OAuth
// identities.
type ProfileRepository interface {
	Create(profile *models.Profile) error
	GetByUserID(userID string) (*models.Profile, error)
	GetByEmail(email string) (*models.Profile, error)
	GetByProviderIdentity(provider, providerUserID string) (*models.Profile, *models.LinkedIdentity, error)
	AddIdentity(identity *models.LinkedIdentity) error
	UpdateIdentityTokens(identity *models.LinkedIdentity) error
	UpdateLastLogin(userID string) error
}

// SubscriptionRepository defines read access to the local subscription
// mirror. Writes go through the billing service's own repository so the
// wholesale-overwrite invariant has a single owner.
type SubscriptionRepository interface {
	GetByUserID(userID string) (*models.Subscription, error)
	GetByStripeCustomerID(customerID string) (*models.Subscription, error)
}

// WebhookEventRepository defines read access to the webhook event audit
// trail. Writes go through the billing service (idempotent insert).
type WebhookEventRepository interface {
	ListRecent(limit int) ([]models.WebhookEvent, error)
}

// Repositories bundles all repository instances
type Repositories struct {
	Profile      ProfileRepository
	Subscription SubscriptionRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates all repositories with the given database connection
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Profile:      NewProfileRepository(db),
		Subscription: NewSubscriptionRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
