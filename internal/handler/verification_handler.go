package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/manumu/auth-api/internal/service"
)

// VerificationManager is the slice of the verification service this handler
// needs; narrowed to an interface so tests can swap it out.
type VerificationManager interface {
	Resend(ctx context.Context, email string) error
	Consume(ctx context.Context, token string) error
}

// VerificationHandler serves the resend endpoint and the verification link.
type VerificationHandler struct {
	verification VerificationManager
	appURL       string
}

// NewVerificationHandler creates a new verification handler. appURL is the
// base for post-verification redirects.
func NewVerificationHandler(verification VerificationManager, appURL string) *VerificationHandler {
	return &VerificationHandler{
		verification: verification,
		appURL:       strings.TrimRight(appURL, "/"),
	}
}

// ResendRequest is the resend endpoint payload.
type ResendRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Resend issues a fresh verification token for the email unless the user is
// unknown, already verified or inside the cooldown window. Responds 200
// {ok:true} or 400 {ok:false, reason}.
func (h *VerificationHandler) Resend(c *gin.Context) {
	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": "bad-request"})
		return
	}

	err := h.verification.Resend(c.Request.Context(), req.Email)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if reason, ok := resendFailureReason(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "reason": reason})
		return
	}

	// email-send-failed and storage errors: full detail to the log, a generic
	// message to the user.
	log.Printf("[VerificationHandler] Resend failed for email=%s: %v", req.Email, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error", "error_type": "internal_server_error"})
}

// Verify consumes the token from the verification link and redirects to the
// application's success or error page.
func (h *VerificationHandler) Verify(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.Redirect(http.StatusFound, h.appURL+"/verify/error?reason=not-found")
		return
	}

	err := h.verification.Consume(c.Request.Context(), token)
	if err == nil {
		c.Redirect(http.StatusFound, h.appURL+"/verify/success")
		return
	}

	c.Redirect(http.StatusFound, h.appURL+"/verify/error?reason="+consumeFailureReason(err))
}

// resendFailureReason maps resend business-rule failures onto wire reasons.
func resendFailureReason(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrVerificationNotFound):
		return "not-found", true
	case errors.Is(err, service.ErrAlreadyVerified):
		return "already-verified", true
	case errors.Is(err, service.ErrResendCooldown):
		return "cooldown", true
	default:
		return "", false
	}
}

// consumeFailureReason maps consumption failures onto redirect reasons;
// anything unexpected becomes "default".
func consumeFailureReason(err error) string {
	switch {
	case errors.Is(err, service.ErrVerificationNotFound):
		return "not-found"
	case errors.Is(err, service.ErrVerificationExpired):
		return "expired"
	case errors.Is(err, service.ErrAlreadyVerified):
		return "already-verified"
	default:
		log.Printf("[VerificationHandler] Unexpected consume error: %v", err)
		return "default"
	}
}
