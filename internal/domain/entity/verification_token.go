package entity

import "time"

// VerificationToken is a single-use email verification credential.
// Identifier is the normalized email the token was issued for; it is not a
// foreign key, but must match an existing users.email. Records are immutable
// once created and are bulk-deleted by identifier when any of them is consumed.
type VerificationToken struct {
	Identifier string    `gorm:"size:100;not null;index" json:"identifier"`
	Token      string    `gorm:"size:64;primaryKey" json:"-"`
	Expires    time.Time `gorm:"not null" json:"expires"`
}

// TableName sets the table name for GORM.
func (VerificationToken) TableName() string {
	return "verification_tokens"
}

// IsExpired reports whether the token is past its expiry at the given instant.
// Expired tokens are never swept; they are simply invalid for consumption.
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return now.After(t.Expires)
}
