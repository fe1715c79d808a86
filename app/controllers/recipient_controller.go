package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/lovetextforher/lovetext/app/models"
	"github.com/lovetextforher/lovetext/app/repository"
	"github.com/lovetextforher/lovetext/internal/pkg/entitlements"
	"github.com/lovetextforher/lovetext/internal/pkg/scheduling"
	"github.com/lovetextforher/lovetext/internal/pkg/usercontext"
)

// RecipientController owns the /api/v1/recipients CRUD surface. Creation is
// gated on entitlement and on the plan's recipient cap.
type RecipientController struct {
	users      repository.UserRepository
	recipients repository.RecipientRepository
	now        func() time.Time
}

func NewRecipientController(users repository.UserRepository, recipients repository.RecipientRepository) *RecipientController {
	return &RecipientController{users: users, recipients: recipients, now: time.Now}
}

type recipientRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	DeliveryMethod string `json:"delivery_method"`
	Relationship   string `json:"relationship"`
	Frequency      string `json:"frequency"`
	Timing         string `json:"timing"`
	Timezone       string `json:"timezone"`
	IsActive       *bool  `json:"is_active"`
}

// HandleList returns all recipients belonging to the session user.
func (rc *RecipientController) HandleList(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	recipients, err := rc.recipients.ListByUser(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load recipients"})
	}
	return c.JSON(fiber.Map{"recipients": recipients, "count": len(recipients)})
}

// HandleGet returns one recipient; 404 when it belongs to someone else.
func (rc *RecipientController) HandleGet(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	r, resp := rc.loadOwned(c, userID)
	if r == nil {
		return resp
	}
	return c.JSON(r)
}

// HandleCreate creates a recipient. Requires an entitled customer with free
// capacity under the plan's recipient cap.
func (rc *RecipientController) HandleCreate(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	now := rc.now().UTC()

	u, err := rc.users.GetByID(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load account"})
	}
	if !entitlements.IsEntitled(u, now) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "payment_required", "message": "An active trial or subscription is required"})
	}

	limit, unlimited := entitlements.RecipientLimit(entitlements.ParsePlan(u.Plan))
	if !unlimited {
		count, err := rc.recipients.CountByUser(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count recipients"})
		}
		if count >= int64(limit) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "recipient_limit_reached", "message": "The current plan allows no more recipients"})
		}
	}

	var req recipientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Request body could not be parsed"})
	}

	r := &models.Recipient{
		UserID:         userID,
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		DeliveryMethod: normalized(req.DeliveryMethod, models.DeliveryMethodEmail),
		Relationship:   strings.TrimSpace(req.Relationship),
		Frequency:      normalized(req.Frequency, models.FrequencyDaily),
		Timing:         normalized(req.Timing, models.TimingMorning),
		Timezone:       strings.TrimSpace(req.Timezone),
		IsActive:       true,
	}
	if r.Timezone == "" {
		r.Timezone = "UTC"
	}
	if err := r.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := rc.requireAddress(r); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := r.GenerateUnsubscribeToken(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create recipient"})
	}
	r.NextDelivery = scheduling.NextDelivery(r.Frequency, r.Timing, now)

	if err := rc.recipients.Create(r); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create recipient"})
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

// HandleUpdate edits a recipient. A change of frequency or timing recomputes
// the delivery cursor from now so the new cadence takes effect immediately.
func (rc *RecipientController) HandleUpdate(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	r, resp := rc.loadOwned(c, userID)
	if r == nil {
		return resp
	}

	var req recipientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Request body could not be parsed"})
	}

	rescheduled := false
	if v := strings.TrimSpace(req.Name); v != "" {
		r.Name = v
	}
	if v := strings.TrimSpace(req.Email); v != "" {
		r.Email = v
	}
	if v := strings.TrimSpace(req.Phone); v != "" {
		r.Phone = v
	}
	if v := normalized(req.DeliveryMethod, ""); v != "" {
		r.DeliveryMethod = v
	}
	if v := strings.TrimSpace(req.Relationship); v != "" {
		r.Relationship = v
	}
	if v := normalized(req.Frequency, ""); v != "" && v != r.Frequency {
		r.Frequency = v
		rescheduled = true
	}
	if v := normalized(req.Timing, ""); v != "" && v != r.Timing {
		r.Timing = v
		rescheduled = true
	}
	if v := strings.TrimSpace(req.Timezone); v != "" {
		r.Timezone = v
	}
	if req.IsActive != nil {
		r.IsActive = *req.IsActive
	}

	if err := r.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := rc.requireAddress(r); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if rescheduled {
		r.NextDelivery = scheduling.NextDelivery(r.Frequency, r.Timing, rc.now().UTC())
	}

	if err := rc.recipients.Update(r); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update recipient"})
	}
	return c.JSON(r)
}

// HandleDelete removes a recipient owned by the session user.
func (rc *RecipientController) HandleDelete(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	r, resp := rc.loadOwned(c, userID)
	if r == nil {
		return resp
	}
	if err := rc.recipients.Delete(r.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete recipient"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// loadOwned resolves the :id route param to a recipient of the session user.
// On failure the response has already been written; callers return the second
// value as-is. Foreign recipients 404 like missing ones so ownership is not
// probeable.
func (rc *RecipientController) loadOwned(c *fiber.Ctx, userID uint) (*models.Recipient, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_id", "message": "Invalid recipient id"})
	}
	r, err := rc.recipients.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Recipient not found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load recipient"})
	}
	if r.UserID != userID {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Recipient not found"})
	}
	return r, nil
}

// requireAddress checks that the delivery method has a matching address.
func (rc *RecipientController) requireAddress(r *models.Recipient) error {
	if r.WantsEmail() && r.Email == "" {
		return errors.New("email delivery requires an email address")
	}
	if r.WantsSMS() && r.Phone == "" {
		return errors.New("sms delivery requires a phone number")
	}
	return nil
}

func normalized(v, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return fallback
	}
	return v
}
