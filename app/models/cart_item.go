package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// CartItem is one merch position in a customer's shopping cart. Carts are
// plain CRUD plumbing outside the delivery core.
type CartItem struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	ProductSKU     string    `gorm:"type:varchar(64);not null" json:"product_sku" validate:"required,max=64"`
	ProductName    string    `gorm:"type:varchar(200);not null" json:"product_name" validate:"required,max=200"`
	Quantity       int       `gorm:"not null;default:1" json:"quantity" validate:"min=1,max=99"`
	UnitPriceCents int       `gorm:"not null;default:0" json:"unit_price_cents" validate:"min=0"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ci *CartItem) Validate() error {
	v := validator.New()

	return v.Struct(ci)
}
