package apiv1

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// PaymentsVerifyParams are the query parameters of GET /payments/verify.
type PaymentsVerifyParams struct {
	Reference string `query:"reference"`
	CourseID  uint   `query:"course_id"`
}

// ServerInterface lists the operations published in public/docs/v1/openapi.yml.
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (POST /checkout)
	PostCheckout(c *fiber.Ctx) error
	// (GET /payments/verify)
	GetPaymentsVerify(c *fiber.Ctx, params PaymentsVerifyParams) error
	// (GET /enrollments/{course_id}/status)
	GetEnrollmentStatus(c *fiber.Ctx, courseID uint) error
}

// ServerInterfaceWrapper binds path and query parameters before calling
// the handler.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (siw *ServerInterfaceWrapper) GetPing(c *fiber.Ctx) error {
	return siw.Handler.GetPing(c)
}

func (siw *ServerInterfaceWrapper) PostCheckout(c *fiber.Ctx) error {
	return siw.Handler.PostCheckout(c)
}

func (siw *ServerInterfaceWrapper) GetPaymentsVerify(c *fiber.Ctx) error {
	var params PaymentsVerifyParams
	if err := c.QueryParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid format for query parameters: "+err.Error())
	}
	if params.Reference == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Query argument reference is required, but not found")
	}
	// QueryParser aliases the request buffer, which fasthttp reuses.
	params.Reference = utils.CopyString(params.Reference)
	return siw.Handler.GetPaymentsVerify(c, params)
}

func (siw *ServerInterfaceWrapper) GetEnrollmentStatus(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("course_id"), 10, 64)
	if err != nil || id == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid format for parameter course_id")
	}
	return siw.Handler.GetEnrollmentStatus(c, uint(id))
}

// RegisterHandlers mounts every operation on router. Middlewares run in
// front of all of them.
func RegisterHandlers(router fiber.Router, si ServerInterface, middlewares ...fiber.Handler) {
	wrapper := ServerInterfaceWrapper{Handler: si}
	for _, m := range middlewares {
		router.Use(m)
	}

	router.Get("/ping", wrapper.GetPing)
	router.Post("/checkout", wrapper.PostCheckout)
	router.Get("/payments/verify", wrapper.GetPaymentsVerify)
	router.Get("/enrollments/:course_id/status", wrapper.GetEnrollmentStatus)
}
