package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"
	"gorm.io/gorm"

	"github.com/lovetextforher/lovetext/app/models"
	"github.com/lovetextforher/lovetext/app/repository"
	"github.com/lovetextforher/lovetext/internal/pkg/session"
	"github.com/lovetextforher/lovetext/internal/pkg/usercontext"
)

// AuthController handles registration, login and logout with Redis-backed
// sessions.
type AuthController struct {
	users repository.UserRepository
	store *fsession.Store
}

func NewAuthController(users repository.UserRepository, store *fsession.Store) *AuthController {
	return &AuthController{users: users, store: store}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a new account and logs it in.
func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Request body could not be parsed"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := ac.users.GetByEmail(email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "email_taken", "message": "An account with this email already exists"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to check email"})
	}

	u, err := models.CreateUser(strings.TrimSpace(req.Name), email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := u.GenerateActivationToken(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create account"})
	}
	if err := ac.users.Create(u); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create account"})
	}

	if err := ac.issueSession(c, u); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create session"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": u.ID, "name": u.Name, "email": u.Email})
}

// HandleLogin authenticates email + password and issues a session.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Request body could not be parsed"})
	}

	u, err := ac.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials", "message": "Email or password is wrong"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load account"})
	}
	if !u.CheckPassword(req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials", "message": "Email or password is wrong"})
	}
	if !u.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "account_disabled", "message": "This account is not active"})
	}

	now := time.Now()
	u.LastLoginAt = &now
	if err := ac.users.Update(u); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update account"})
	}

	if err := ac.issueSession(c, u); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create session"})
	}
	return c.JSON(fiber.Map{"id": u.ID, "name": u.Name, "email": u.Email, "plan": u.Plan})
}

// HandleLogout drops the session.
func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if err := session.Destroy(ac.store, c); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to destroy session"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleMe returns the session user's account.
func (ac *AuthController) HandleMe(c *fiber.Ctx) error {
	u, err := ac.users.GetByID(usercontext.GetUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load account"})
	}
	return c.JSON(u)
}

func (ac *AuthController) issueSession(c *fiber.Ctx, u *models.User) error {
	sess, err := ac.store.Get(c)
	if err != nil {
		return err
	}
	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, u.ID)
	sess.Set(usercontext.KeyUsername, u.Name)
	sess.Set(usercontext.KeyIsAdmin, u.IsAdmin())
	return sess.Save()
}
