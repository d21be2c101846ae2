package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manumu/auth-api/internal/domain/entity"
	"github.com/manumu/auth-api/internal/domain/repository"
	apperrors "github.com/manumu/auth-api/internal/pkg/errors"
)

// IssuedToken is the result of issuing a verification token: the raw token and
// the fully-formed verification URL for embedding in an outbound email.
type IssuedToken struct {
	Token     string
	VerifyURL string
	Expires   time.Time
}

// VerificationService manages the email verification token lifecycle: issue on
// registration, resend with a cooldown, single-use consumption. TTL, cooldown
// and the app URL are injected at construction, never read from the process
// environment at call time.
type VerificationService struct {
	userRepo       repository.UserRepository
	tokenRepo      repository.VerificationTokenRepository
	emailService   EmailService
	tokenTTL       time.Duration
	resendCooldown time.Duration
	appURL         string
}

// NewVerificationService creates a new verification service.
func NewVerificationService(
	userRepo repository.UserRepository,
	tokenRepo repository.VerificationTokenRepository,
	emailService EmailService,
	tokenTTL time.Duration,
	resendCooldown time.Duration,
	appURL string,
) (*VerificationService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if tokenRepo == nil {
		return nil, fmt.Errorf("verification token repository is required")
	}
	if emailService == nil {
		return nil, fmt.Errorf("email service is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}
	if resendCooldown <= 0 {
		resendCooldown = 2 * time.Minute
	}

	return &VerificationService{
		userRepo:       userRepo,
		tokenRepo:      tokenRepo,
		emailService:   emailService,
		tokenTTL:       tokenTTL,
		resendCooldown: resendCooldown,
		appURL:         strings.TrimRight(appURL, "/"),
	}, nil
}

// Issue generates and persists a fresh verification token for the normalized
// email. Prior tokens for the same identifier are left outstanding. Storage
// failures propagate to the caller; there is no retry.
func (s *VerificationService) Issue(ctx context.Context, email string) (*IssuedToken, error) {
	identifier := normalizeEmail(email)

	token, err := generateVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	expires := time.Now().Add(s.tokenTTL)
	record := &entity.VerificationToken{
		Identifier: identifier,
		Token:      token,
		Expires:    expires,
	}
	if err := s.tokenRepo.Create(record); err != nil {
		return nil, fmt.Errorf("failed to create verification token: %w", err)
	}

	return &IssuedToken{
		Token:     token,
		VerifyURL: s.appURL + "/verify?token=" + url.QueryEscape(token),
		Expires:   expires,
	}, nil
}

// IssueAndSend issues a token and dispatches the verification email.
func (s *VerificationService) IssueAndSend(ctx context.Context, email, name string) error {
	issued, err := s.Issue(ctx, email)
	if err != nil {
		return err
	}

	idempotencyKey := "email-verify:" + uuid.NewString()
	if err := s.emailService.SendVerificationEmail(ctx, normalizeEmail(email), name, issued.VerifyURL, idempotencyKey); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}
	return nil
}

// Resend issues a new verification token for the email unless the user is
// missing, already verified, or inside the cooldown window.
//
// The cooldown check reuses the latest token's expiry as a proxy for its
// issuance time rather than storing an explicit issuedAt: a resend is allowed
// only once the latest token has been expired for at least the cooldown
// interval. The approximation assumes the TTL is stable between issuance and
// resend.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	identifier := normalizeEmail(email)

	user, err := s.userRepo.GetByEmail(identifier)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrVerificationNotFound
		}
		return err
	}
	if user.IsVerified() {
		return ErrAlreadyVerified
	}

	latest, err := s.tokenRepo.GetLatestByIdentifier(identifier)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	if latest != nil && latest.Expires.After(time.Now().Add(-s.resendCooldown)) {
		return ErrResendCooldown
	}

	return s.IssueAndSend(ctx, identifier, user.Name)
}

// Consume validates a token and, when valid, atomically marks the user
// verified and deletes every outstanding token for the identifier — not just
// the one presented. A second consume of the same token therefore reports
// ErrVerificationNotFound; that is the intended single-use semantics.
func (s *VerificationService) Consume(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrVerificationNotFound
	}

	record, err := s.tokenRepo.GetByToken(token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrVerificationNotFound
		}
		return err
	}

	if record.IsExpired(time.Now()) {
		// The record stays in place; expired tokens are not cleaned up here.
		return ErrVerificationExpired
	}

	// The identifier should always resolve to a user, but guard against
	// accounts deleted after issuance.
	user, err := s.userRepo.GetByEmail(record.Identifier)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrVerificationNotFound
		}
		return err
	}
	if user.IsVerified() {
		// Sibling tokens are left behind; they can never be validly consumed
		// once the user is verified.
		return ErrAlreadyVerified
	}

	if err := s.tokenRepo.ConsumeAllForUser(user.ID, record.Identifier, time.Now()); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Lost a race against a concurrent consume: the user was verified
			// and the tokens deleted between our checks and the transaction.
			return ErrVerificationNotFound
		}
		return fmt.Errorf("failed to consume verification token: %w", err)
	}

	log.Printf("[VerificationService] Email verified for user ID=%d (%s)", user.ID, user.Email)
	return nil
}

// generateVerificationToken returns 32 bytes (256 bits) from a CSPRNG in a
// URL-safe, unpadded encoding.
func generateVerificationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
