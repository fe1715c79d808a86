package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/lovetextforher/lovetext/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Deps
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}

func (a *ApiRouter) InstallRouter(app *fiber.App) {
	// Provider webhook lives outside /api/v1: no session, no rate limiter, no
	// body-parsing middleware ahead of it so the raw bytes stay verifiable.
	internal := app.Group("/api/internal")
	internal.Post("/billing/webhook", a.deps.Billing.HandleWebhook)

	api := app.Group("/api", limiter.New())

	v1 := api.Group("/v1")
	v1.Post("/auth/register", a.deps.Auth.HandleRegister)
	v1.Post("/auth/login", a.deps.Auth.HandleLogin)
	v1.Post("/password-reset/request", a.deps.PasswordReset.HandleRequest)
	v1.Post("/password-reset/confirm", a.deps.PasswordReset.HandleConfirm)

	authed := v1.Group("", middleware.RequireAuth)
	authed.Post("/auth/logout", a.deps.Auth.HandleLogout)
	authed.Get("/auth/me", a.deps.Auth.HandleMe)

	authed.Get("/recipients", a.deps.Recipients.HandleList)
	authed.Post("/recipients", a.deps.Recipients.HandleCreate)
	authed.Get("/recipients/:id", a.deps.Recipients.HandleGet)
	authed.Put("/recipients/:id", a.deps.Recipients.HandleUpdate)
	authed.Delete("/recipients/:id", a.deps.Recipients.HandleDelete)

	authed.Get("/cart", a.deps.Cart.HandleList)
	authed.Post("/cart", a.deps.Cart.HandleAdd)
	authed.Delete("/cart/:id", a.deps.Cart.HandleRemove)
	authed.Delete("/cart", a.deps.Cart.HandleClear)

	authed.Get("/stats/sends-today", a.deps.Stats.HandleSendsToday)
	authed.Get("/stats/history", a.deps.Stats.HandleHistory)

	admin := v1.Group("/admin", middleware.RequireAdmin)
	admin.Get("/users", a.deps.Admin.HandleListUsers)
	admin.Delete("/users/:id", a.deps.Admin.HandleDeleteUser)
}
