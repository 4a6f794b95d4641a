package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// AuthMethodPassword is the method name reported for password-based accounts
// alongside linked OAuth provider names.
const AuthMethodPassword = "password"

// Profile is the internal user record. UserID is the application-wide opaque
// identity (UUID); StripeCustomerID stays nil until the first purchase links
// a billing customer.
type Profile struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	UserID           string           `gorm:"type:uuid;uniqueIndex;not null" json:"user_id" validate:"required,uuid4"`
	Email            string           `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	FullName         string           `gorm:"type:varchar(150)" json:"full_name" validate:"max=150"`
	PasswordHash     string           `gorm:"type:text" json:"-"`
	StripeCustomerID *string          `gorm:"type:varchar(191);uniqueIndex" json:"stripe_customer_id,omitempty"`
	Role             string           `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status           string           `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	LastLoginAt      *time.Time       `gorm:"type:timestamp;default:null" json:"last_login_at"`
	Identities       []LinkedIdentity `gorm:"foreignKey:ProfileUserID;references:UserID" json:"identities,omitempty"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (p *Profile) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// BeforeCreate assigns a UUID identity when the caller did not provide one.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(p.UserID) == "" {
		p.UserID = uuid.NewString()
	}
	return nil
}

// CreateProfile builds a validated password-based profile. The row is not
// persisted; callers hand it to the repository.
func CreateProfile(email, fullName, password string) (*Profile, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		UserID:       uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		Role:         ROLE_USER,
		Status:       STATUS_ACTIVE,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// HasPassword reports whether the account can authenticate with a password.
// OAuth-only accounts carry an empty hash.
func (p *Profile) HasPassword() bool {
	return p.PasswordHash != ""
}

// HasStripeCustomer reports whether a billing customer is already linked.
func (p *Profile) HasStripeCustomer() bool {
	return p.StripeCustomerID != nil && *p.StripeCustomerID != ""
}

// IsActive reports whether the profile status is active
func (p *Profile) IsActive() bool {
	return p.Status == STATUS_ACTIVE
}

// CheckPassword verifies if the provided password matches the stored hash
func (p *Profile) CheckPassword(password string) bool {
	return p.HasPassword() && CheckPasswordHash(password, p.PasswordHash)
}

// SetPassword hashes and sets a new password for the profile
func (p *Profile) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	return nil
}

// AuthMethods lists how this account can sign in: "password" plus the
// provider name of every linked OAuth identity.
func (p *Profile) AuthMethods() []string {
	methods := make([]string, 0, len(p.Identities)+1)
	if p.HasPassword() {
		methods = append(methods, AuthMethodPassword)
	}
	for _, id := range p.Identities {
		methods = append(methods, id.Provider)
	}
	return methods
}

// HasAuthMethod reports whether the given method (provider name or
// "password") is already attached to the account.
func (p *Profile) HasAuthMethod(method string) bool {
	m := strings.ToLower(strings.TrimSpace(method))
	for _, have := range p.AuthMethods() {
		if have == m {
			return true
		}
	}
	return false
}
