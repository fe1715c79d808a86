package billing

import (
	"time"

	"github.com/lovetextforher/lovetext/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	GetUserByID(id uint) (*models.User, error)
	GetUserByExternalCustomerID(ref string) (*models.User, error)
	SaveUser(u *models.User) error
	// RevokeAndCascade persists the cleared user and deletes all of their
	// recipients in one transaction.
	RevokeAndCascade(u *models.User) error
	CountRecipients(userID uint) (int64, error)
	// DeleteOldestExcess trims the user's recipients down to keep, deleting
	// lowest IDs first so the most-recently-added recipients survive.
	DeleteOldestExcess(userID uint, keep int) (int64, error)
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	ListExpiredTrials(now time.Time) ([]models.User, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByExternalCustomerID(ref string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("external_customer_id = ?", ref).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SaveUser(u *models.User) error {
	return r.db.Save(u).Error
}

func (r *gormRepository) RevokeAndCascade(u *models.User) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(u).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", u.ID).Delete(&models.Recipient{}).Error
	})
}

func (r *gormRepository) CountRecipients(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Recipient{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *gormRepository) DeleteOldestExcess(userID uint, keep int) (int64, error) {
	count, err := r.CountRecipients(userID)
	if err != nil {
		return 0, err
	}
	excess := count - int64(keep)
	if excess <= 0 {
		return 0, nil
	}

	var ids []uint
	if err := r.db.Model(&models.Recipient{}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Limit(int(excess)).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	tx := r.db.Where("id IN ?", ids).Delete(&models.Recipient{})
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) ListExpiredTrials(now time.Time) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("trial_active = ? AND trial_end IS NOT NULL AND trial_end <= ?", true, now).Find(&users).Error
	return users, err
}
