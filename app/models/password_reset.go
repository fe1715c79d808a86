package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// PasswordReset is a single-use reset token. Expired and used rows are swept
// opportunistically; they carry no entitlement state.
type PasswordReset struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Token     string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"type:timestamp;not null" json:"expires_at"`
	UsedAt    *time.Time `gorm:"type:timestamp;default:null" json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// NewPasswordReset creates a reset token for the user valid for the given TTL
func NewPasswordReset(userID uint, ttl time.Duration) (*PasswordReset, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return &PasswordReset{
		UserID:    userID,
		Token:     hex.EncodeToString(b),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// IsValid reports whether the token is unused and unexpired at the given instant
func (p *PasswordReset) IsValid(now time.Time) bool {
	return p.UsedAt == nil && now.Before(p.ExpiresAt)
}
