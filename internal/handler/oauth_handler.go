package handler

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/manumu/auth-api/internal/service"
)

// oauthStateCookieName holds the CSRF state between the redirect to the
// provider and the callback.
const oauthStateCookieName = "oauth_state"

// OAuthHandler serves the provider redirect and callback endpoints.
type OAuthHandler struct {
	oauthService *service.OAuthService
	authService  *service.AuthService
	appURL       string
}

// NewOAuthHandler creates a new OAuth handler.
func NewOAuthHandler(oauthService *service.OAuthService, authService *service.AuthService, appURL string) *OAuthHandler {
	return &OAuthHandler{
		oauthService: oauthService,
		authService:  authService,
		appURL:       strings.TrimRight(appURL, "/"),
	}
}

// SignIn redirects the browser to the provider's consent screen. The random
// state lands in a short-lived cookie and is checked again on callback.
func (h *OAuthHandler) SignIn(c *gin.Context) {
	provider := c.Param("provider")
	if !h.oauthService.ProviderEnabled(provider) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown provider", "error_type": "not_found"})
		return
	}

	state, err := generateOAuthState()
	if err != nil {
		log.Printf("[OAuthHandler] Failed to generate state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
		return
	}

	authURL, err := h.oauthService.AuthCodeURL(provider, state)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown provider", "error_type": "not_found"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookieName, state, 600, "/", "", gin.Mode() == gin.ReleaseMode, true)
	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the flow: verifies state, exchanges the code, resolves
// the provider account to a local user, installs the session cookie and sends
// the browser back to the application.
func (h *OAuthHandler) Callback(c *gin.Context) {
	provider := c.Param("provider")

	state := c.Query("state")
	expected, err := c.Cookie(oauthStateCookieName)
	if err != nil || state == "" || state != expected {
		log.Printf("[OAuthHandler] State mismatch for provider %s", provider)
		c.Redirect(http.StatusFound, h.appURL+"/login?error=oauth_state_mismatch")
		return
	}
	// One-shot state.
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookieName, "", -1, "/", "", gin.Mode() == gin.ReleaseMode, true)

	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusFound, h.appURL+"/login?error=oauth_failed")
		return
	}

	user, err := h.oauthService.HandleCallback(c.Request.Context(), provider, code)
	if err != nil {
		log.Printf("[OAuthHandler] Callback failed for provider %s: %v", provider, err)
		c.Redirect(http.StatusFound, h.appURL+"/login?error=oauth_failed")
		return
	}

	resp, err := h.authService.IssueSession(user)
	if err != nil {
		log.Printf("[OAuthHandler] Failed to issue session for user ID=%d: %v", user.ID, err)
		c.Redirect(http.StatusFound, h.appURL+"/login?error=oauth_failed")
		return
	}

	setSessionCookie(c, resp.AccessToken, resp.ExpiresIn)
	c.Redirect(http.StatusFound, h.appURL)
}

func generateOAuthState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
