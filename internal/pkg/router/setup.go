package router

import (
	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"

	"github.com/lovetextforher/lovetext/app/controllers"
)

// Router installs one slice of the route surface.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries every controller the routers mount. Built once in main and
// passed down; routers never construct their own dependencies.
type Deps struct {
	Store         *fsession.Store
	Auth          *controllers.AuthController
	Recipients    *controllers.RecipientController
	Billing       *controllers.BillingController
	Unsubscribe   *controllers.UnsubscribeController
	PasswordReset *controllers.PasswordResetController
	Cart          *controllers.CartController
	Admin         *controllers.AdminController
	Stats         *controllers.StatsController
}

// InstallRouter mounts all routes. The HTTP router goes first because it
// installs the session-backed UserContext middleware the API routes rely on.
func InstallRouter(app *fiber.App, deps Deps) {
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, routers ...Router) {
	for _, r := range routers {
		r.InstallRouter(app)
	}
}
