package accountlink

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/launchbase-dev/launchbase/app/models"
	"github.com/launchbase-dev/launchbase/internal/pkg/env"
)

// DefaultTokenTTL bounds how long a linking confirmation may stay pending.
const DefaultTokenTTL = 15 * time.Minute

// Directory is the profile access the linker needs.
type Directory interface {
	GetByEmail(email string) (*models.Profile, error)
	AddIdentity(identity *models.LinkedIdentity) error
}

// Claims is the verified content of a linking token.
type Claims struct {
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
}

// Check is the outcome of a pre-signup collision probe.
type Check struct {
	NeedsLinking   bool     `json:"needsLinking"`
	Message        string   `json:"message,omitempty"`
	ExistingUserID string   `json:"existingUserId,omitempty"`
	Methods        []string `json:"methods,omitempty"`
}

// Service detects email collisions between OAuth sign-ins and existing
// accounts and carries linking intent across the confirmation redirect via
// stateless signed tokens.
type Service struct {
	dir    Directory
	secret []byte
	ttl    time.Duration

	now func() time.Time
}

// New creates an account linker. An empty secret disables the feature.
func New(dir Directory, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	var key []byte
	if s := strings.TrimSpace(secret); s != "" {
		key = []byte(s)
	}
	return &Service{dir: dir, secret: key, ttl: ttl, now: time.Now}
}

// NewFromEnv creates an account linker configured from ACCOUNT_LINKING_SECRET.
func NewFromEnv(dir Directory) *Service {
	return New(dir, env.GetEnv("ACCOUNT_LINKING_SECRET", ""), DefaultTokenTTL)
}

// Enabled reports whether the linking feature is available. Without the
// signing secret the whole feature is hidden.
func (s *Service) Enabled() bool {
	return len(s.secret) > 0
}

// CheckAccountLinking probes whether an incoming OAuth sign-in for email
// collides with an existing account lacking that provider. It fails open:
// lookup errors and missing accounts both report "no linking needed" so a
// degraded lookup never blocks a normal signup.
func (s *Service) CheckAccountLinking(ctx context.Context, email, provider string) Check {
	_ = ctx
	if !s.Enabled() {
		return Check{}
	}
	addr := strings.ToLower(strings.TrimSpace(email))
	p := strings.ToLower(strings.TrimSpace(provider))
	if addr == "" || p == "" {
		return Check{}
	}

	profile, err := s.dir.GetByEmail(addr)
	if err != nil {
		return Check{}
	}
	if profile.HasAuthMethod(p) {
		return Check{}
	}

	return Check{
		NeedsLinking:   true,
		Message:        fmt.Sprintf("An account with %s already exists. Sign in to link your %s account.", addr, p),
		ExistingUserID: profile.UserID,
		Methods:        profile.AuthMethods(),
	}
}

// GenerateLinkingToken encodes {email, provider, now} into an opaque signed
// token suitable for a redirect query parameter.
func (s *Service) GenerateLinkingToken(email, provider string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("account linking is not configured")
	}
	payload, err := json.Marshal(Claims{
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Provider:  strings.ToLower(strings.TrimSpace(provider)),
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + s.sign(body), nil
}

// VerifyLinkingToken decodes and authenticates a linking token. Malformed,
// tampered, or expired tokens yield nil, never a panic or error.
func (s *Service) VerifyLinkingToken(token string) *Claims {
	if !s.Enabled() {
		return nil
	}
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil
	}

	expected, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(parts[0]))
	if !hmac.Equal(mac.Sum(nil), expected) {
		return nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil
	}
	if claims.Email == "" || claims.Provider == "" {
		return nil
	}

	age := s.now().UTC().Sub(claims.Timestamp)
	if age < -time.Minute || age > s.ttl {
		return nil
	}
	return &claims
}

// LinkOAuthToExistingAccount attaches a new OAuth identity to the account
// that owns the email.
func (s *Service) LinkOAuthToExistingAccount(ctx context.Context, email, provider, providerUserID, accessToken, refreshToken string, expiresAt *time.Time) error {
	_ = ctx
	addr := strings.ToLower(strings.TrimSpace(email))
	p := strings.ToLower(strings.TrimSpace(provider))
	if addr == "" || p == "" || strings.TrimSpace(providerUserID) == "" {
		return errors.New("email, provider and provider user id are required")
	}

	profile, err := s.dir.GetByEmail(addr)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("no account exists for this email")
		}
		return err
	}

	return s.dir.AddIdentity(&models.LinkedIdentity{
		ProfileUserID:  profile.UserID,
		Provider:       p,
		ProviderUserID: strings.TrimSpace(providerUserID),
		Email:          addr,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		ExpiresAt:      expiresAt,
	})
}

func (s *Service) sign(body string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}
