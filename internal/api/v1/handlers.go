package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CourseFox/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	payments *controllers.PaymentController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(payments *controllers.PaymentController) *APIServer {
	return &APIServer{payments: payments}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

// PostCheckout starts a hosted checkout for the session user.
func (s *APIServer) PostCheckout(c *fiber.Ctx) error {
	return s.payments.HandleCheckoutAPI(c)
}

// GetPaymentsVerify long-polls the enrollment for a callback reference.
func (s *APIServer) GetPaymentsVerify(c *fiber.Ctx, params PaymentsVerifyParams) error {
	return s.payments.HandleVerifyPayment(c, params.Reference, params.CourseID)
}

// GetEnrollmentStatus reports whether the session user owns the course.
func (s *APIServer) GetEnrollmentStatus(c *fiber.Ctx, courseID uint) error {
	return s.payments.HandleEnrollmentStatus(c, courseID)
}
