package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProfile(t *testing.T) {
	p, err := CreateProfile("Alice@Example.com ", " Alice Doe ", "s3cret-pass")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, "Alice Doe", p.FullName)
	assert.NotEmpty(t, p.UserID)
	assert.Equal(t, ROLE_USER, p.Role)
	assert.Equal(t, STATUS_ACTIVE, p.Status)
	assert.True(t, p.HasPassword())
	assert.True(t, p.CheckPassword("s3cret-pass"))
	assert.False(t, p.CheckPassword("wrong"))
}

func TestCreateProfileInvalidEmail(t *testing.T) {
	_, err := CreateProfile("not-an-email", "Alice", "s3cret-pass")
	assert.Error(t, err)
}

func TestCheckPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("other", hash))
	assert.False(t, CheckPasswordHash("s3cret-pass", ""))
}

func TestCheckPasswordOAuthOnlyAccount(t *testing.T) {
	p := &Profile{UserID: "user-1", Email: "alice@example.com"}

	assert.False(t, p.HasPassword())
	assert.False(t, p.CheckPassword(""))
	assert.False(t, p.CheckPassword("anything"))
}

func TestBeforeCreateAssignsUserID(t *testing.T) {
	p := &Profile{Email: "alice@example.com"}
	require.NoError(t, p.BeforeCreate(nil))
	assert.NotEmpty(t, p.UserID)

	keep := &Profile{UserID: "existing-id", Email: "bob@example.com"}
	require.NoError(t, keep.BeforeCreate(nil))
	assert.Equal(t, "existing-id", keep.UserID)
}

func TestHasStripeCustomer(t *testing.T) {
	p := &Profile{}
	assert.False(t, p.HasStripeCustomer())

	empty := ""
	p.StripeCustomerID = &empty
	assert.False(t, p.HasStripeCustomer())

	cus := "cus_123"
	p.StripeCustomerID = &cus
	assert.True(t, p.HasStripeCustomer())
}

func TestAuthMethods(t *testing.T) {
	p := &Profile{PasswordHash: "hash"}
	assert.Equal(t, []string{AuthMethodPassword}, p.AuthMethods())

	p.Identities = []LinkedIdentity{
		{Provider: "google", ProviderUserID: "g-1"},
		{Provider: "github", ProviderUserID: "gh-1"},
	}
	assert.Equal(t, []string{AuthMethodPassword, "google", "github"}, p.AuthMethods())

	assert.True(t, p.HasAuthMethod("password"))
	assert.True(t, p.HasAuthMethod("Google"))
	assert.True(t, p.HasAuthMethod(" github "))
	assert.False(t, p.HasAuthMethod("gitlab"))

	oauthOnly := &Profile{Identities: []LinkedIdentity{{Provider: "google"}}}
	assert.Equal(t, []string{"google"}, oauthOnly.AuthMethods())
	assert.False(t, oauthOnly.HasAuthMethod("password"))
}
