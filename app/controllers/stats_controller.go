package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lovetextforher/lovetext/app/repository"
	"github.com/lovetextforher/lovetext/internal/pkg/metrics/counter"
	"github.com/lovetextforher/lovetext/internal/pkg/usercontext"
)

// StatsController serves per-customer delivery statistics. The hot "today"
// number comes from Redis; history comes from the durable message log.
type StatsController struct {
	logs  repository.MessageLogRepository
	sends *counter.SendCounter
}

func NewStatsController(logs repository.MessageLogRepository, sends *counter.SendCounter) *StatsController {
	return &StatsController{logs: logs, sends: sends}
}

// HandleSendsToday returns the number of deliveries that went out today for
// the session user. Falls back to the message log when Redis is unavailable.
func (sc *StatsController) HandleSendsToday(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	now := time.Now().UTC()

	if sc.sends != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if n, err := sc.sends.SendsOn(ctx, userID, now); err == nil {
			return c.JSON(fiber.Map{"date": now.Format("2006-01-02"), "sends": n})
		} else {
			log.Warnf("[Stats] Redis counter read failed for user %d: %v", userID, err)
		}
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	n, err := sc.logs.CountForUserSince(userID, midnight)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count deliveries"})
	}
	return c.JSON(fiber.Map{"date": now.Format("2006-01-02"), "sends": n})
}

// HandleHistory returns the session user's recent delivery log.
func (sc *StatsController) HandleHistory(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	perPage := c.QueryInt("per_page", 50)
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	logs, err := sc.logs.ListByUser(userID, (page-1)*perPage, perPage)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load history"})
	}
	return c.JSON(fiber.Map{"messages": logs, "page": page, "per_page": perPage})
}
