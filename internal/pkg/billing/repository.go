package billing

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/launchbase-dev/launchbase/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	GetProfileByUserID(userID string) (*models.Profile, error)
	GetProfileByEmail(email string) (*models.Profile, error)
	GetProfileByStripeCustomerID(customerID string) (*models.Profile, error)
	CreateCustomerAndProfile(userID, email, stripeCustomerID, fullName string) (*models.Profile, bool, bool, error)
	UpdateStripeCustomerID(userID, stripeCustomerID string) error
	UpsertSubscription(sub *models.Subscription) error
	GetSubscriptionByUserID(userID string) (*models.Subscription, error)
	FindActivePlanMapping(stripePriceID, interval string) (*models.PlanMapping, error)
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetProfileByUserID(userID string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.Preload("Identities").Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetProfileByEmail(email string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.Preload("Identities").Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetProfileByStripeCustomerID(customerID string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.Where("stripe_customer_id = ?", customerID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateCustomerAndProfile creates the profile row and/or links the billing
// customer in one transaction. Concurrent duplicate attempts converge on the
// user_id unique index instead of in-process locking. The returned flags
// report whether the profile and the customer link were newly created.
func (r *gormRepository) CreateCustomerAndProfile(userID, email, stripeCustomerID, fullName string) (*models.Profile, bool, bool, error) {
	var profile models.Profile
	newProfile := false
	newCustomer := false

	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&models.Profile{
			UserID:   userID,
			Email:    strings.ToLower(strings.TrimSpace(email)),
			FullName: strings.TrimSpace(fullName),
			Role:     models.ROLE_USER,
			Status:   models.STATUS_ACTIVE,
		})
		if res.Error != nil {
			return res.Error
		}
		newProfile = res.RowsAffected > 0

		if err := tx.Where("user_id = ?", userID).First(&profile).Error; err != nil {
			return err
		}

		if stripeCustomerID != "" && !profile.HasStripeCustomer() {
			if err := tx.Model(&models.Profile{}).Where("user_id = ?", userID).
				Update("stripe_customer_id", stripeCustomerID).Error; err != nil {
				return err
			}
			profile.StripeCustomerID = &stripeCustomerID
			newCustomer = true
		}
		return nil
	})
	if err != nil {
		return nil, false, false, err
	}
	return &profile, newCustomer, newProfile, nil
}

func (r *gormRepository) UpdateStripeCustomerID(userID, stripeCustomerID string) error {
	res := r.db.Model(&models.Profile{}).Where("user_id = ?", userID).
		Update("stripe_customer_id", stripeCustomerID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertSubscription overwrites the mirror row for the customer wholesale.
func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "stripe_customer_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"stripe_subscription_id",
			"status",
			"price_id",
			"plan_name",
			"internal_plan",
			"billing_interval",
			"currency",
			"unit_amount",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"payment_method_brand",
			"payment_method_last4",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("stripe_customer_id = ?", sub.StripeCustomerID).First(sub).Error
}

func (r *gormRepository) GetSubscriptionByUserID(userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindActivePlanMapping(stripePriceID, interval string) (*models.PlanMapping, error) {
	var m models.PlanMapping
	err := r.db.
		Where("stripe_price_id = ? AND billing_interval = ? AND is_active = ?", stripePriceID, interval, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
