package repository

import (
	"time"

	"github.com/lovetextforher/lovetext/app/models"
	"gorm.io/gorm"
)

type passwordResetRepository struct {
	db *gorm.DB
}

// NewPasswordResetRepository creates a new password reset repository instance
func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(reset *models.PasswordReset) error {
	return r.db.Create(reset).Error
}

func (r *passwordResetRepository) GetByToken(token string) (*models.PasswordReset, error) {
	var reset models.PasswordReset
	if err := r.db.Where("token = ?", token).First(&reset).Error; err != nil {
		return nil, err
	}
	return &reset, nil
}

func (r *passwordResetRepository) MarkUsed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.PasswordReset{}).Where("id = ?", id).Update("used_at", &now).Error
}

func (r *passwordResetRepository) DeleteExpired(now time.Time) (int64, error) {
	tx := r.db.Where("expires_at < ?", now).Delete(&models.PasswordReset{})
	return tx.RowsAffected, tx.Error
}
