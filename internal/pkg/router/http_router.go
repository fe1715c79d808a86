package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lovetextforher/lovetext/internal/pkg/middleware"
)

type HttpRouter struct {
	deps Deps
}

func NewHttpRouter(deps Deps) *HttpRouter {
	return &HttpRouter{deps: deps}
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	// Resolve the session into a request-scoped user context on every route.
	app.Use(middleware.UserContext(h.deps.Store))

	// Public opt-out link embedded in every outgoing message.
	app.Get("/unsubscribe/:token", h.deps.Unsubscribe.HandleUnsubscribe)
}
