package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/ManuelReschke/CourseFox/app/controllers"
	"github.com/ManuelReschke/CourseFox/internal/pkg/middleware"
)

// Router installs one group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps are the controllers and stores every route group needs.
type Deps struct {
	Sessions *session.Store
	Users    middleware.UserLookup
	Payments *controllers.PaymentController
	Admin    *controllers.AdminPaymentController
}

func InstallRouter(app *fiber.App, deps Deps) {
	// HttpRouter installs the UserContext middleware the API routes rely on,
	// so it goes first.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
