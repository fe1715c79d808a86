package repository

import (
	"time"

	"github.com/lovetextforher/lovetext/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for customer-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByExternalCustomerID(ref string) (*models.User, error)
	Update(user *models.User) error
	// DeleteCascade hard-deletes the user together with their recipients,
	// message logs, reset tokens and cart rows. Admin-only operation.
	DeleteCascade(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// RecipientRepository defines the interface for recipient-related database operations
type RecipientRepository interface {
	Create(r *models.Recipient) error
	GetByID(id uint) (*models.Recipient, error)
	GetByUnsubscribeToken(token string) (*models.Recipient, error)
	ListByUser(userID uint) ([]models.Recipient, error)
	CountByUser(userID uint) (int64, error)
	// ListDue returns active recipients whose delivery cursor has come due.
	ListDue(now time.Time) ([]models.Recipient, error)
	Update(r *models.Recipient) error
	// AdvanceCursor is a guarded read-modify-write of the delivery cursor: it
	// updates only the still-existing row and never resurrects a concurrently
	// deleted recipient.
	AdvanceCursor(id uint, next time.Time, sentAt time.Time) error
	Delete(id uint) error
	DeleteByUser(userID uint) error
}

// MessageLogRepository defines the interface for the append-only send log
type MessageLogRepository interface {
	Append(entry *models.MessageLog) error
	ListByUser(userID uint, offset, limit int) ([]models.MessageLog, error)
	CountForUserSince(userID uint, since time.Time) (int64, error)
}

// PasswordResetRepository defines the interface for reset-token operations
type PasswordResetRepository interface {
	Create(reset *models.PasswordReset) error
	GetByToken(token string) (*models.PasswordReset, error)
	MarkUsed(id uint) error
	DeleteExpired(now time.Time) (int64, error)
}

// CartRepository defines the interface for shopping-cart operations
type CartRepository interface {
	Add(item *models.CartItem) error
	ListByUser(userID uint) ([]models.CartItem, error)
	Remove(userID, itemID uint) error
	ClearByUser(userID uint) error
}

// Repositories bundles all repository instances; constructed once at startup
// and injected, never reached through a global.
type Repositories struct {
	User          UserRepository
	Recipient     RecipientRepository
	MessageLog    MessageLogRepository
	PasswordReset PasswordResetRepository
	Cart          CartRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		Recipient:     NewRecipientRepository(db),
		MessageLog:    NewMessageLogRepository(db),
		PasswordReset: NewPasswordResetRepository(db),
		Cart:          NewCartRepository(db),
	}
}
