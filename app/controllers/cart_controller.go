package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lovetextforher/lovetext/app/models"
	"github.com/lovetextforher/lovetext/app/repository"
	"github.com/lovetextforher/lovetext/internal/pkg/usercontext"
)

// CartController is the merch cart CRUD surface.
type CartController struct {
	cart repository.CartRepository
}

func NewCartController(cart repository.CartRepository) *CartController {
	return &CartController{cart: cart}
}

type cartItemRequest struct {
	ProductSKU     string `json:"product_sku"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

func (cc *CartController) HandleAdd(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	var req cartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "message": "Request body could not be parsed"})
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	item := &models.CartItem{
		UserID:         userID,
		ProductSKU:     strings.TrimSpace(req.ProductSKU),
		ProductName:    strings.TrimSpace(req.ProductName),
		Quantity:       req.Quantity,
		UnitPriceCents: req.UnitPriceCents,
	}
	if err := item.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	if err := cc.cart.Add(item); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to add cart item"})
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (cc *CartController) HandleList(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	items, err := cc.cart.ListByUser(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load cart"})
	}

	total := 0
	for _, item := range items {
		total += item.Quantity * item.UnitPriceCents
	}
	return c.JSON(fiber.Map{"items": items, "count": len(items), "total_cents": total})
}

func (cc *CartController) HandleRemove(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_id", "message": "Invalid cart item id"})
	}
	if err := cc.cart.Remove(userID, uint(id)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to remove cart item"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (cc *CartController) HandleClear(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if err := cc.cart.ClearByUser(userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to clear cart"})
	}
	return c.JSON(fiber.Map{"ok": true})
}
