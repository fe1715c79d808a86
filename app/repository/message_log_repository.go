package repository

import (
	"time"

	"github.com/lovetextforher/lovetext/app/models"
	"gorm.io/gorm"
)

// messageLogRepository implements the MessageLogRepository interface
type messageLogRepository struct {
	db *gorm.DB
}

// NewMessageLogRepository creates a new message log repository instance
func NewMessageLogRepository(db *gorm.DB) MessageLogRepository {
	return &messageLogRepository{db: db}
}

// Append writes one immutable log row. There is deliberately no update path.
func (r *messageLogRepository) Append(entry *models.MessageLog) error {
	return r.db.Create(entry).Error
}

func (r *messageLogRepository) ListByUser(userID uint, offset, limit int) ([]models.MessageLog, error) {
	var logs []models.MessageLog
	err := r.db.Where("user_id = ?", userID).
		Order("sent_at DESC").
		Offset(offset).Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *messageLogRepository) CountForUserSince(userID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.MessageLog{}).
		Where("user_id = ? AND sent_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}
