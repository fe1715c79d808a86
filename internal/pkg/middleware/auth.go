package middleware

import (
	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"

	"github.com/lovetextforher/lovetext/internal/pkg/usercontext"
)

// UserContext resolves the session into a request-scoped UserContext. It runs
// first on every route; handlers only ever look at the context, never at the
// session directly.
func UserContext(store *fsession.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		auth, _ := sess.Get(usercontext.AuthKey).(bool)
		if !auth {
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		userID, _ := sess.Get(usercontext.KeyUserID).(uint)
		username, _ := sess.Get(usercontext.KeyUsername).(string)
		isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)

		usercontext.Set(c, usercontext.UserContext{
			UserID:     userID,
			Username:   username,
			IsLoggedIn: userID != 0,
			IsAdmin:    isAdmin,
		})
		return c.Next()
	}
}

// RequireAuth ensures a logged-in session for API routes; returns JSON 401 otherwise.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireAdmin ensures a logged-in admin; returns JSON 403 otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	if !usercontext.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "admin required",
		})
	}
	return c.Next()
}
