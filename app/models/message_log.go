package models

import "time"

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// MessageLog is an append-only audit record of one delivery attempt on one
// channel. Rows are written even when transport fails, so the log captures
// intent and content; delivery success is observable via the Delivered flag.
// Rows are never updated and only removed when the owning user is deleted.
type MessageLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	RecipientID uint      `gorm:"not null;index" json:"recipient_id"`
	Channel     string    `gorm:"type:varchar(10);not null" json:"channel"`
	Address     string    `gorm:"type:varchar(200);not null" json:"address"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	Delivered   bool      `gorm:"default:false" json:"delivered"`
	SentAt      time.Time `gorm:"type:timestamp;not null;index" json:"sent_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
