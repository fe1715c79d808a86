package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DeliveryMethodEmail = "email"
	DeliveryMethodSMS   = "sms"
	DeliveryMethodBoth  = "both"
)

const (
	FrequencyDaily          = "daily"
	FrequencyEveryOtherDay  = "every-other-day"
	FrequencyThreeTimesWeek = "three-times-week"
	FrequencyWeekly         = "weekly"
	FrequencyBiWeekly       = "bi-weekly"
)

const (
	TimingMorning   = "morning"
	TimingAfternoon = "afternoon"
	TimingEvening   = "evening"
	TimingNight     = "night"
)

// Recipient is a person a customer sends scheduled messages to. NextDelivery
// is the delivery cursor: it is recomputed right after every send and is
// always in the future relative to the last successful send. Timezone is
// stored for the customer's reference only; scheduling math runs in UTC.
type Recipient struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	Name             string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Email            string     `gorm:"type:varchar(200);default:''" json:"email" validate:"omitempty,email,max=200"`
	Phone            string     `gorm:"type:varchar(30);default:''" json:"phone" validate:"omitempty,max=30"`
	DeliveryMethod   string     `gorm:"type:varchar(10);not null;default:'email'" json:"delivery_method" validate:"oneof=email sms both"`
	Relationship     string     `gorm:"type:varchar(100);default:''" json:"relationship" validate:"max=100"`
	Frequency        string     `gorm:"type:varchar(30);not null;default:'daily'" json:"frequency" validate:"oneof=daily every-other-day three-times-week weekly bi-weekly"`
	Timing           string     `gorm:"type:varchar(20);not null;default:'morning'" json:"timing" validate:"oneof=morning afternoon evening night"`
	Timezone         string     `gorm:"type:varchar(64);default:'UTC'" json:"timezone" validate:"max=64"`
	NextDelivery     time.Time  `gorm:"type:timestamp;not null;index:idx_recipients_active_due,priority:2" json:"next_delivery"`
	LastSent         *time.Time `gorm:"type:timestamp;default:null" json:"last_sent,omitempty"`
	IsActive         bool       `gorm:"default:true;index:idx_recipients_active_due,priority:1" json:"is_active"`
	UnsubscribeToken string     `gorm:"type:varchar(100);uniqueIndex" json:"-"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Recipient) Validate() error {
	v := validator.New()

	return v.Struct(r)
}

// GenerateUnsubscribeToken assigns a fresh high-entropy token. Generated once
// at creation; the token is the only credential for the public unsubscribe
// endpoint.
func (r *Recipient) GenerateUnsubscribeToken() error {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	r.UnsubscribeToken = hex.EncodeToString(b)
	return nil
}

// WantsEmail reports whether deliveries should go out via email
func (r *Recipient) WantsEmail() bool {
	return r.DeliveryMethod == DeliveryMethodEmail || r.DeliveryMethod == DeliveryMethodBoth
}

// WantsSMS reports whether deliveries should go out via SMS
func (r *Recipient) WantsSMS() bool {
	return r.DeliveryMethod == DeliveryMethodSMS || r.DeliveryMethod == DeliveryMethodBoth
}
