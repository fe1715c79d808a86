package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/lovetextforher/lovetext/internal/pkg/billing"
)

// BillingController receives payment-provider webhooks. The route must be
// registered without any body-parsing middleware so the raw bytes the
// signature was computed over are still available.
type BillingController struct {
	svc           *billing.Service
	webhookSecret string
}

func NewBillingController(svc *billing.Service, webhookSecret string) *BillingController {
	return &BillingController{svc: svc, webhookSecret: webhookSecret}
}

// HandleWebhook ingests one provider event: verify signature over the raw
// body, persist the event idempotently, then run it through the reconciler.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("X-Billing-Signature"))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	signatureValid := billing.VerifyWebhookSignature(rawBody, signature, bc.webhookSecret)
	if !signatureValid {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ev, err := billing.ParseWebhookEvent(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	created, stored, err := bc.svc.RecordWebhookEvent(ctx, ev.ID, ev.Type, rawBody, signatureValid)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		// Replay of an event we already own; acknowledge without re-applying.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	if !billing.IsSubscriptionEvent(ev.Type) {
		_ = bc.svc.MarkWebhookProcessed(ctx, stored.ID, nil)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	applyErr := bc.svc.Apply(ctx, ev)
	_ = bc.svc.MarkWebhookProcessed(ctx, stored.ID, applyErr)

	if applyErr != nil {
		if errors.Is(applyErr, billing.ErrUnknownCustomer) || errors.Is(applyErr, gorm.ErrRecordNotFound) {
			// Nothing local to reconcile against; acknowledge so the provider
			// stops retrying an event we can never apply.
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		if errors.Is(applyErr, billing.ErrTrialAlreadyUsed) {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "rejected": "trial_already_used"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_apply_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
