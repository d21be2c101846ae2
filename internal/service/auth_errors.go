package service

import "errors"

// Auth and verification flow errors used by handlers for stable error_type
// and reason mapping.
var (
	// ErrEmailNotVerified blocks credential sign-in after a correct password
	// when the email is still unverified. Deliberately distinguishable from
	// invalid credentials so the client can prompt for verification.
	ErrEmailNotVerified = errors.New("email_not_verified")

	// ErrVerificationNotFound covers both a missing token and a missing user
	// for the token's identifier.
	ErrVerificationNotFound = errors.New("verification_not_found")

	// ErrVerificationExpired marks a token past its expiry. The record is left
	// in place; expiry is enforced lazily, never by a sweep.
	ErrVerificationExpired = errors.New("verification_expired")

	// ErrAlreadyVerified is a terminal success-adjacent state, not a failure.
	ErrAlreadyVerified = errors.New("already_verified")

	// ErrResendCooldown throttles token re-issuance for the same email.
	ErrResendCooldown = errors.New("verification_resend_cooldown")

	// ErrEmailSendFailed wraps delivery failures; surfaced to logs only, the
	// user gets a generic message.
	ErrEmailSendFailed = errors.New("email_send_failed")

	// ErrOAuthProviderDisabled is returned for providers without configured
	// credentials.
	ErrOAuthProviderDisabled = errors.New("oauth_provider_disabled")

	// ErrOAuthEmailMissing is returned when a provider yields no usable email.
	ErrOAuthEmailMissing = errors.New("oauth_email_missing")
)
