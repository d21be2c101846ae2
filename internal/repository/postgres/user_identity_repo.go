package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/manumu/auth-api/internal/domain/entity"
	apperrors "github.com/manumu/auth-api/internal/pkg/errors"
)

// UserIdentityRepo implements repository.UserIdentityRepository.
type UserIdentityRepo struct {
	db *gorm.DB
}

// NewUserIdentityRepo creates a new user identity repository.
func NewUserIdentityRepo(db *gorm.DB) *UserIdentityRepo {
	return &UserIdentityRepo{db: db}
}

func (r *UserIdentityRepo) Create(identity *entity.UserIdentity) error {
	if err := r.db.Create(identity).Error; err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return err
	}
	return nil
}

func (r *UserIdentityRepo) GetByProviderSub(provider, sub string) (*entity.UserIdentity, error) {
	var identity entity.UserIdentity
	err := r.db.Where("provider = ? AND provider_sub = ?", provider, sub).First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user identity: %w", err)
	}
	return &identity, nil
}
