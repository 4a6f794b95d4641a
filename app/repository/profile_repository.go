package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/launchbase-dev/launchbase/app/models"
)

// profileRepository implements the ProfileRepository interface
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository instance
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Create creates a new profile in the database
func (r *profileRepository) Create(profile *models.Profile) error {
	return r.db.Create(profile).Error
}

// GetByUserID retrieves a profile by its opaque user identity
func (r *profileRepository) GetByUserID(userID string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.Preload("Identities").Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByEmail retrieves a profile by its email address
func (r *profileRepository) GetByEmail(email string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.Preload("Identities").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByProviderIdentity resolves an OAuth identity to the owning profile.
func (r *profileRepository) GetByProviderIdentity(provider, providerUserID string) (*models.Profile, *models.LinkedIdentity, error) {
	var identity models.LinkedIdentity
	err := r.db.Where("provider = ? AND provider_user_id = ?", provider, providerUserID).
		First(&identity).Error
	if err != nil {
		return nil, nil, err
	}
	profile, err := r.GetByUserID(identity.ProfileUserID)
	if err != nil {
		return nil, nil, err
	}
	return profile, &identity, nil
}

// AddIdentity attaches an OAuth identity to a profile
func (r *profileRepository) AddIdentity(identity *models.LinkedIdentity) error {
	return r.db.Create(identity).Error
}

// UpdateIdentityTokens refreshes the stored provider tokens after a login
func (r *profileRepository) UpdateIdentityTokens(identity *models.LinkedIdentity) error {
	return r.db.Save(identity).Error
}

// UpdateLastLogin stamps the profile's last login time
func (r *profileRepository) UpdateLastLogin(userID string) error {
	return r.db.Model(&models.Profile{}).Where("user_id = ?", userID).
		UpdateColumn("last_login_at", time.Now()).Error
}
