package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/launchbase-dev/launchbase/app/models"
	"github.com/launchbase-dev/launchbase/app/repository"
	"github.com/launchbase-dev/launchbase/internal/pkg/accountlink"
	"github.com/launchbase-dev/launchbase/internal/pkg/session"
)

// Session keys carrying the pending OAuth identity across the linking
// confirmation redirect.
const (
	pendingOAuthProviderKey = "pending_oauth_provider"
	pendingOAuthUserIDKey   = "pending_oauth_user_id"
	pendingOAuthAccessKey   = "pending_oauth_access_token"
	pendingOAuthRefreshKey  = "pending_oauth_refresh_token"
)

type linkConfirmRequest struct {
	Token string `json:"token"`
}

func newAccountLinker() *accountlink.Service {
	return accountlink.NewFromEnv(repository.GetGlobalRepositories().Profile)
}

// HandleOAuthCallback completes the provider flow and logs the user in.
// When the OAuth email collides with an existing account that lacks this
// provider, the flow detours to a token-confirmed linking step instead of
// silently creating a duplicate account.
func HandleOAuthCallback(c *fiber.Ctx) error {
	// Complete OAuth with provider and obtain unified user
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Printf("oauth completion failed: %v", err)
		return flash.WithError(c, fiber.Map{"type": "error", "message": "OAuth sign-in failed"}).Redirect("/login", fiber.StatusSeeOther)
	}

	repo := repository.GetGlobalRepositories().Profile

	profile, identity, err := repo.GetByProviderIdentity(u.Provider, u.UserID)
	if err == nil {
		// Known identity: refresh tokens and log in
		identity.AccessToken = u.AccessToken
		identity.RefreshToken = u.RefreshToken
		if !u.ExpiresAt.IsZero() {
			t := u.ExpiresAt
			identity.ExpiresAt = &t
		} else {
			identity.ExpiresAt = nil
		}
		if err := repo.UpdateIdentityTokens(identity); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("update tokens failed: %v", err))
		}
		return finishOAuthLogin(c, repo, profile)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("db error: %v", err))
	}

	// Unknown identity: probe for an email collision with an existing account
	linker := newAccountLinker()
	if linker.Enabled() && u.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		check := linker.CheckAccountLinking(ctx, u.Email, u.Provider)
		cancel()
		if check.NeedsLinking {
			token, err := linker.GenerateLinkingToken(u.Email, u.Provider)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("linking token generation failed")
			}
			if err := stashPendingOAuthIdentity(c, u.Provider, u.UserID, u.AccessToken, u.RefreshToken); err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("session save failed")
			}
			return flash.WithInfo(c, fiber.Map{"type": "info", "message": check.Message}).
				Redirect("/auth/link/confirm?token="+url.QueryEscape(token), fiber.StatusSeeOther)
		}
	}

	// No collision: create a fresh OAuth-only account
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		// Ensure unique, non-empty email to satisfy the unique index
		email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
	}
	profile = &models.Profile{
		Email:    email,
		FullName: firstNonEmpty(u.Name, u.NickName, u.Email),
		Role:     models.ROLE_USER,
		Status:   models.STATUS_ACTIVE,
	}
	if err := repo.Create(profile); err != nil {
		// Concurrent signup with the same email: fall back to the stored row
		if existing, lookupErr := repo.GetByEmail(email); lookupErr == nil {
			profile = existing
		} else {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("create profile failed: %v", err))
		}
	}

	var exp *time.Time
	if !u.ExpiresAt.IsZero() {
		t := u.ExpiresAt
		exp = &t
	}
	if err := repo.AddIdentity(&models.LinkedIdentity{
		ProfileUserID:  profile.UserID,
		Provider:       u.Provider,
		ProviderUserID: u.UserID,
		Email:          email,
		AccessToken:    u.AccessToken,
		RefreshToken:   u.RefreshToken,
		ExpiresAt:      exp,
	}); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("link provider failed: %v", err))
	}

	return finishOAuthLogin(c, repo, profile)
}

// HandleLinkConfirm finishes the linking detour: the user proved intent by
// presenting the signed token, so the pending OAuth identity is attached to
// the existing account and the session is logged in.
func HandleLinkConfirm(c *fiber.Ctx) error {
	var req linkConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		req.Token = c.Query("token")
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token is required"})
	}

	linker := newAccountLinker()
	claims := linker.VerifyLinkingToken(req.Token)
	if claims == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or expired linking token"})
	}

	provider := session.GetSessionValue(c, pendingOAuthProviderKey)
	providerUserID := session.GetSessionValue(c, pendingOAuthUserIDKey)
	if provider == "" || providerUserID == "" || provider != claims.Provider {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No pending sign-in matches this token"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := linker.LinkOAuthToExistingAccount(
		ctx,
		claims.Email,
		claims.Provider,
		providerUserID,
		session.GetSessionValue(c, pendingOAuthAccessKey),
		session.GetSessionValue(c, pendingOAuthRefreshKey),
		nil,
	)
	if err != nil {
		log.Printf("account linking failed for %s via %s: %v", claims.Email, claims.Provider, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not link accounts"})
	}

	clearPendingOAuthIdentity(c)

	repo := repository.GetGlobalRepositories().Profile
	profile, err := repo.GetByEmail(claims.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Linked account not found"})
	}
	if err := createUserSession(c, profile); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Login failed"})
	}
	_ = repo.UpdateLastLogin(profile.UserID)

	return c.JSON(fiber.Map{
		"ok":       true,
		"userId":   profile.UserID,
		"email":    profile.Email,
		"provider": claims.Provider,
	})
}

// HandleLinkCheck exposes the collision probe so the frontend can decide
// whether to show the linking prompt before starting an OAuth flow.
func HandleLinkCheck(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	provider := strings.TrimSpace(c.Query("provider"))
	if email == "" || provider == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and provider are required"})
	}

	linker := newAccountLinker()
	if !linker.Enabled() {
		return c.JSON(accountlink.Check{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return c.JSON(linker.CheckAccountLinking(ctx, email, provider))
}

func finishOAuthLogin(c *fiber.Ctx, repo repository.ProfileRepository, profile *models.Profile) error {
	if err := createUserSession(c, profile); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session save failed")
	}
	_ = repo.UpdateLastLogin(profile.UserID)

	// Ensure boosted flows perform a full redirect and refresh head/meta
	c.Set("HX-Redirect", "/")
	return c.Redirect("/", fiber.StatusSeeOther)
}

func stashPendingOAuthIdentity(c *fiber.Ctx, provider, providerUserID, accessToken, refreshToken string) error {
	if err := session.SetSessionValue(c, pendingOAuthProviderKey, provider); err != nil {
		return err
	}
	if err := session.SetSessionValue(c, pendingOAuthUserIDKey, providerUserID); err != nil {
		return err
	}
	if err := session.SetSessionValue(c, pendingOAuthAccessKey, accessToken); err != nil {
		return err
	}
	return session.SetSessionValue(c, pendingOAuthRefreshKey, refreshToken)
}

func clearPendingOAuthIdentity(c *fiber.Ctx) {
	_ = session.SetSessionValue(c, pendingOAuthProviderKey, "")
	_ = session.SetSessionValue(c, pendingOAuthUserIDKey, "")
	_ = session.SetSessionValue(c, pendingOAuthAccessKey, "")
	_ = session.SetSessionValue(c, pendingOAuthRefreshKey, "")
}
