package repository

import (
	"time"

	"github.com/lovetextforher/lovetext/app/models"
	"gorm.io/gorm"
)

// recipientRepository implements the RecipientRepository interface
type recipientRepository struct {
	db *gorm.DB
}

// NewRecipientRepository creates a new recipient repository instance
func NewRecipientRepository(db *gorm.DB) RecipientRepository {
	return &recipientRepository{db: db}
}

func (r *recipientRepository) Create(recipient *models.Recipient) error {
	return r.db.Create(recipient).Error
}

func (r *recipientRepository) GetByID(id uint) (*models.Recipient, error) {
	var recipient models.Recipient
	if err := r.db.First(&recipient, id).Error; err != nil {
		return nil, err
	}
	return &recipient, nil
}

func (r *recipientRepository) GetByUnsubscribeToken(token string) (*models.Recipient, error) {
	var recipient models.Recipient
	if err := r.db.Where("unsubscribe_token = ?", token).First(&recipient).Error; err != nil {
		return nil, err
	}
	return &recipient, nil
}

func (r *recipientRepository) ListByUser(userID uint) ([]models.Recipient, error) {
	var recipients []models.Recipient
	err := r.db.Where("user_id = ?", userID).Order("id ASC").Find(&recipients).Error
	return recipients, err
}

func (r *recipientRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Recipient{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// ListDue returns all active recipients whose cursor is at or before now.
// The dispatch loop re-reads the owning user per recipient, so no join here.
func (r *recipientRepository) ListDue(now time.Time) ([]models.Recipient, error) {
	var recipients []models.Recipient
	err := r.db.Where("is_active = ? AND next_delivery <= ?", true, now).Find(&recipients).Error
	return recipients, err
}

func (r *recipientRepository) Update(recipient *models.Recipient) error {
	return r.db.Save(recipient).Error
}

// AdvanceCursor moves the delivery cursor forward and stamps last_sent. A
// plain keyed UPDATE: if the recipient was deleted concurrently the update
// affects zero rows and nothing is resurrected.
func (r *recipientRepository) AdvanceCursor(id uint, next time.Time, sentAt time.Time) error {
	return r.db.Model(&models.Recipient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"next_delivery": next,
			"last_sent":     sentAt,
		}).Error
}

func (r *recipientRepository) Delete(id uint) error {
	return r.db.Delete(&models.Recipient{}, id).Error
}

func (r *recipientRepository) DeleteByUser(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.Recipient{}).Error
}
