package entity

import (
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User is an account holder. Email is stored normalized (lowercase, trimmed)
// and doubles as the identifier for verification tokens.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:100;not null;default:''" json:"name"`
	Email    string `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Password string `gorm:"size:100;not null;default:''" json:"-"`
	Image    string `gorm:"size:255;not null;default:''" json:"image"`
	Role     string `gorm:"size:20;not null;default:'USER'" json:"role"` // "USER" or "ADMIN"

	// EmailVerifiedAt is nil until the user consumes a verification token.
	// It is set exactly once and never cleared.
	EmailVerifiedAt *time.Time `gorm:"type:timestamp" json:"email_verified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for GORM.
func (User) TableName() string {
	return "users"
}

// IsVerified reports whether the user's email has been confirmed.
func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

// HasPassword reports whether credential sign-in is possible for this account.
// OAuth-only accounts carry an empty password hash.
func (u *User) HasPassword() bool {
	return u.Password != ""
}

// BeforeSave hashes the password before persisting, unless it is already a bcrypt hash.
func (u *User) BeforeSave(tx *gorm.DB) error {
	// Hash only when the password is non-empty and not already a bcrypt hash
	// (bcrypt hashes start with "$2a$", "$2b$" or "$2y$").
	if len(u.Password) > 0 && !strings.HasPrefix(u.Password, "$2a$") &&
		!strings.HasPrefix(u.Password, "$2b$") && !strings.HasPrefix(u.Password, "$2y$") {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[User.BeforeSave] Failed to hash password for email=%s: %v", u.Email, err)
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

// CheckPassword compares a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	if u.Password == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}
