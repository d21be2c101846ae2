package repository

import "github.com/manumu/auth-api/internal/domain/entity"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	UpdateProfile(userID uint, updates map[string]interface{}) error
}
