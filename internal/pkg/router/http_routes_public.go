package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseFox/internal/pkg/constants"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Processor webhooks (no CSRF, no limiter, signature-verified in the receiver)
	app.Post(constants.PaystackWebhookRoute, h.deps.Payments.HandlePaystackWebhook)
}
