package repository

import (
	"time"

	"github.com/manumu/auth-api/internal/domain/entity"
)

// VerificationTokenRepository persists email verification tokens.
type VerificationTokenRepository interface {
	Create(token *entity.VerificationToken) error

	// GetByToken looks up a token record by its exact token string.
	GetByToken(token string) (*entity.VerificationToken, error)

	// GetLatestByIdentifier returns the outstanding token with the latest
	// expiry for the identifier (expires DESC, first row).
	GetLatestByIdentifier(identifier string) (*entity.VerificationToken, error)

	// ConsumeAllForUser marks the user verified at verifiedAt and deletes every
	// token for the identifier in a single transaction. Partial application
	// (user verified but tokens kept, or the reverse) must be impossible.
	// Returns ErrNotFound when the user is already verified or missing, so
	// exactly one of two racing consumes succeeds.
	ConsumeAllForUser(userID uint, identifier string, verifiedAt time.Time) error
}
