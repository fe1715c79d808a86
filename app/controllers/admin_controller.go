package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lovetextforher/lovetext/app/repository"
)

// AdminController exposes the admin-only account operations.
type AdminController struct {
	users repository.UserRepository
}

func NewAdminController(users repository.UserRepository) *AdminController {
	return &AdminController{users: users}
}

// HandleListUsers returns a paginated customer list.
func (ac *AdminController) HandleListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	perPage := c.QueryInt("per_page", 50)
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	users, err := ac.users.List((page-1)*perPage, perPage)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load users"})
	}
	total, err := ac.users.Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count users"})
	}

	return c.JSON(fiber.Map{"users": users, "total": total, "page": page, "per_page": perPage})
}

// HandleDeleteUser removes a customer together with their recipients, message
// logs, reset tokens and cart rows.
func (ac *AdminController) HandleDeleteUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_id", "message": "Invalid user id"})
	}

	if _, err := ac.users.GetByID(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	if err := ac.users.DeleteCascade(uint(id)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete user"})
	}

	log.Infof("[Admin] User %d deleted with all dependent data", id)
	return c.JSON(fiber.Map{"ok": true})
}
