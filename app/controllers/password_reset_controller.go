package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lovetextforher/lovetext/app/models"
	"github.com/lovetextforher/lovetext/app/repository"
	"github.com/lovetextforher/lovetext/internal/pkg/sender"
)

const resetTokenTTL = 2 * time.Hour

// PasswordResetController issues and consumes single-use reset tokens.
type PasswordResetController struct {
	users   repository.UserRepository
	resets  repository.PasswordResetRepository
	mailer  sender.EmailSender
	baseURL string
}

func NewPasswordResetController(users repository.UserRepository, resets repository.PasswordResetRepository, mailer sender.EmailSender, baseURL string) *PasswordResetController {
	return &PasswordResetController{users: users, resets: resets, mailer: mailer, baseURL: strings.TrimRight(baseURL, "/")}
}

type resetRequestPayload struct {
	Email string `json:"email"`
}

type resetConfirmPayload struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// HandleRequest creates a reset token and mails the link. The response is the
// same whether the email exists or not.
func (pc *PasswordResetController) HandleRequest(c *fiber.Ctx) error {
	var req resetRequestPayload
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Request body could not be parsed"})
	}

	accepted := fiber.Map{"ok": true, "message": "If the email exists, a reset link has been sent"}

	u, err := pc.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(accepted)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to process request"})
	}

	reset, err := models.NewPasswordReset(u.ID, resetTokenTTL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to process request"})
	}
	if err := pc.resets.Create(reset); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to process request"})
	}

	if pc.mailer != nil {
		link := fmt.Sprintf("%s/password-reset?token=%s", pc.baseURL, reset.Token)
		body := fmt.Sprintf("Hello %s,\n\nuse the following link to reset your password within 2 hours:\n%s\n", u.Name, link)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := pc.mailer.Send(ctx, u.Email, "Reset your password", body, body); err != nil {
			log.Errorf("[PasswordReset] Mail to user %d failed: %v", u.ID, err)
		}
	}

	return c.JSON(accepted)
}

// HandleConfirm consumes a token and sets the new password.
func (pc *PasswordResetController) HandleConfirm(c *fiber.Ctx) error {
	var req resetConfirmPayload
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Request body could not be parsed"})
	}

	reset, err := pc.resets.GetByToken(strings.TrimSpace(req.Token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_token", "message": "Token is unknown or expired"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to process request"})
	}
	if !reset.IsValid(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_token", "message": "Token is unknown or expired"})
	}

	u, err := pc.users.GetByID(reset.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load account"})
	}
	if err := u.SetPassword(req.Password); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to set password"})
	}
	if err := u.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := pc.users.Update(u); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to set password"})
	}
	if err := pc.resets.MarkUsed(reset.ID); err != nil {
		log.Errorf("[PasswordReset] Failed to mark token %d used: %v", reset.ID, err)
	}

	return c.JSON(fiber.Map{"ok": true})
}
