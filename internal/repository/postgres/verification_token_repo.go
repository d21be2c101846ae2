package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/manumu/auth-api/internal/domain/entity"
	apperrors "github.com/manumu/auth-api/internal/pkg/errors"
)

// VerificationTokenRepo implements repository.VerificationTokenRepository.
type VerificationTokenRepo struct {
	db *gorm.DB
}

// NewVerificationTokenRepo creates a new verification token repository.
func NewVerificationTokenRepo(db *gorm.DB) *VerificationTokenRepo {
	return &VerificationTokenRepo{db: db}
}

// Create inserts a new token record. Prior tokens for the same identifier are
// left untouched; multiple outstanding tokens are allowed.
func (r *VerificationTokenRepo) Create(token *entity.VerificationToken) error {
	return r.db.Create(token).Error
}

// GetByToken looks up a token by its exact token string.
func (r *VerificationTokenRepo) GetByToken(token string) (*entity.VerificationToken, error) {
	var record entity.VerificationToken
	err := r.db.Where("token = ?", token).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}
	return &record, nil
}

// GetLatestByIdentifier returns the token with the latest expiry for the identifier.
func (r *VerificationTokenRepo) GetLatestByIdentifier(identifier string) (*entity.VerificationToken, error) {
	var record entity.VerificationToken
	err := r.db.
		Where("identifier = ?", identifier).
		Order("expires DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest verification token: %w", err)
	}
	return &record, nil
}

// ConsumeAllForUser marks the user verified and deletes every token for the
// identifier in one transaction. Either both writes land or neither does; a
// leaked sibling token must not stay replayable after the user is verified.
//
// The update is guarded by email_verified_at IS NULL so that of two racing
// consumes only one can claim the row; the loser gets ErrNotFound and the
// first verification timestamp is never overwritten.
func (r *VerificationTokenRepo) ConsumeAllForUser(userID uint, identifier string, verifiedAt time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.User{}).
			Where("id = ? AND email_verified_at IS NULL", userID).
			Updates(map[string]interface{}{
				"email_verified_at": verifiedAt,
				"updated_at":        verifiedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark user verified: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// A concurrent consume already verified the user (or the user is
			// gone); roll back so the tokens it deleted stay deleted.
			return apperrors.ErrNotFound
		}

		if err := tx.Where("identifier = ?", identifier).
			Delete(&entity.VerificationToken{}).Error; err != nil {
			return fmt.Errorf("failed to delete verification tokens: %w", err)
		}

		return nil
	})
}
