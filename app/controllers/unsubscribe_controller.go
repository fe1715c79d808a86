package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lovetextforher/lovetext/app/repository"
)

// UnsubscribeController serves the public opt-out link embedded in every
// outgoing message. The token is the only credential.
type UnsubscribeController struct {
	recipients repository.RecipientRepository
}

func NewUnsubscribeController(recipients repository.RecipientRepository) *UnsubscribeController {
	return &UnsubscribeController{recipients: recipients}
}

// HandleUnsubscribe deletes the recipient behind the token. Unknown tokens get
// the same confirmation as fresh ones so the endpoint stays idempotent and
// tokens cannot be probed.
func (uc *UnsubscribeController) HandleUnsubscribe(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("token"))
	if token == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid unsubscribe link.")
	}

	r, err := uc.recipients.GetByUnsubscribeToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.SendString("You have been unsubscribed. You will not receive further messages.")
		}
		return c.Status(fiber.StatusInternalServerError).SendString("Something went wrong, please try again later.")
	}

	if err := uc.recipients.Delete(r.ID); err != nil {
		log.Errorf("[Unsubscribe] Failed to delete recipient %d: %v", r.ID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Something went wrong, please try again later.")
	}

	log.Infof("[Unsubscribe] Recipient %d opted out", r.ID)
	return c.SendString("You have been unsubscribed. You will not receive further messages.")
}
