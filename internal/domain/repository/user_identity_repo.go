package repository

import "github.com/manumu/auth-api/internal/domain/entity"

// UserIdentityRepository persists links between local users and OAuth providers.
type UserIdentityRepository interface {
	Create(identity *entity.UserIdentity) error
	GetByProviderSub(provider, sub string) (*entity.UserIdentity, error)
}
