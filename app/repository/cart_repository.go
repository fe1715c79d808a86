package repository

import (
	"github.com/lovetextforher/lovetext/app/models"
	"gorm.io/gorm"
)

type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository creates a new cart repository instance
func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) Add(item *models.CartItem) error {
	return r.db.Create(item).Error
}

func (r *cartRepository) ListByUser(userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.Where("user_id = ?", userID).Order("id ASC").Find(&items).Error
	return items, err
}

func (r *cartRepository) Remove(userID, itemID uint) error {
	return r.db.Where("user_id = ? AND id = ?", userID, itemID).Delete(&models.CartItem{}).Error
}

func (r *cartRepository) ClearByUser(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}
