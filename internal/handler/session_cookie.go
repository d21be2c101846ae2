package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCookieName is the HttpOnly cookie carrying the session JWT.
const SessionCookieName = "session_token"

// setSessionCookie installs the session JWT as an HttpOnly cookie. Secure is
// tied to release mode; SameSite=Lax keeps the OAuth callback redirect working.
func setSessionCookie(c *gin.Context, token string, maxAgeSec int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, maxAgeSec, "/", "", gin.Mode() == gin.ReleaseMode, true)
}

func clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", gin.Mode() == gin.ReleaseMode, true)
}
