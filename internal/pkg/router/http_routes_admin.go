package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseFox/internal/pkg/constants"
	"github.com/ManuelReschke/CourseFox/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group(constants.AdminPrefix, middleware.RequireAdmin)

	// Payment gateway credentials
	adminGroup.Get("/settings/payment-gateways/:name", h.deps.Admin.HandleGetGateway)
	adminGroup.Post("/settings/payment-gateways/:name", h.deps.Admin.HandleUpsertGateway)

	// Pipeline stats
	adminGroup.Get("/payments/stats", h.deps.Admin.HandlePaymentStats)
}
