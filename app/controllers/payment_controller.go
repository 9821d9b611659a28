package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sujit-baniya/flash"

	"github.com/ManuelReschke/CourseFox/internal/pkg/mail"
	"github.com/ManuelReschke/CourseFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CourseFox/internal/pkg/payment"
	"github.com/ManuelReschke/CourseFox/internal/pkg/paystack"
	"github.com/ManuelReschke/CourseFox/internal/pkg/poller"
	"github.com/ManuelReschke/CourseFox/internal/pkg/usercontext"
)

// CheckoutInitiator is satisfied by payment.Initiator.
type CheckoutInitiator interface {
	Initiate(ctx context.Context, buyer payment.Buyer, courseID uint) (*payment.CheckoutResult, error)
}

// WebhookReceiver is satisfied by payment.Receiver.
type WebhookReceiver interface {
	Handle(ctx context.Context, body []byte, signature string) payment.Outcome
}

// PaymentCounters is satisfied by counter.Counters.
type PaymentCounters interface {
	Incr(ctx context.Context, name string) error
	AddCourseSale(ctx context.Context, courseID uint) error
	Snapshot(ctx context.Context) (map[string]int64, error)
}

// ReceiptSender is satisfied by mail.SMTPMailer.
type ReceiptSender interface {
	SendEnrollmentReceipt(r mail.EnrollmentReceipt) error
}

// PaymentController serves checkout, callback, verification and webhook
// endpoints. Every dependency is injected; the handlers keep no state.
type PaymentController struct {
	initiator   CheckoutInitiator
	receiver    WebhookReceiver
	enrollments poller.Checker
	counters    PaymentCounters
	pollConfig  poller.Config
	validate    *validator.Validate

	receipts      ReceiptSender
	courseBaseURL string
}

func NewPaymentController(initiator CheckoutInitiator, receiver WebhookReceiver, enrollments poller.Checker, counters PaymentCounters, pollConfig poller.Config) *PaymentController {
	if pollConfig.Interval <= 0 {
		pollConfig.Interval = poller.DefaultInterval
	}
	if pollConfig.Timeout <= 0 {
		pollConfig.Timeout = poller.DefaultTimeout
	}
	return &PaymentController{
		initiator:   initiator,
		receiver:    receiver,
		enrollments: enrollments,
		counters:    counters,
		pollConfig:  pollConfig,
		validate:    validator.New(),
	}
}

// WithReceipts sends a confirmation email for every new enrollment.
// baseURL is the public origin used for the course link.
func (pc *PaymentController) WithReceipts(sender ReceiptSender, baseURL string) *PaymentController {
	pc.receipts = sender
	pc.courseBaseURL = strings.TrimRight(baseURL, "/")
	return pc
}

type checkoutRequest struct {
	CourseID uint `json:"course_id" form:"course_id" validate:"required,gt=0"`
}

// HandleCheckoutAPI starts a hosted checkout for the session user.
func (pc *PaymentController) HandleCheckoutAPI(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	if err := pc.validate.Struct(req); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "course_id is required")
	}

	res, err := pc.initiate(c, req.CourseID)
	if err != nil {
		status, code, msg := checkoutErrorResponse(err)
		return jsonError(c, status, code, msg)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"redirect_url": res.RedirectURL,
		"reference":    res.Reference,
		"amount":       res.AmountMinor,
		"currency":     res.Currency,
	})
}

// HandlePurchaseForm is the form variant of HandleCheckoutAPI. It redirects
// to the processor or back with a flash message.
func (pc *PaymentController) HandlePurchaseForm(c *fiber.Ctx) error {
	courseID, err := parseID(c.Params("id"))
	back := c.Get(fiber.HeaderReferer, "/")
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Unknown course"}).Redirect(back)
	}

	res, err := pc.initiate(c, courseID)
	if err != nil {
		_, _, msg := checkoutErrorResponse(err)
		return flash.WithError(c, fiber.Map{"type": "error", "message": msg}).Redirect(back)
	}
	return c.Redirect(res.RedirectURL, fiber.StatusSeeOther)
}

func (pc *PaymentController) initiate(c *fiber.Ctx, courseID uint) (*payment.CheckoutResult, error) {
	u := usercontext.GetUserContext(c)
	res, err := pc.initiator.Initiate(c.UserContext(), payment.Buyer{ID: u.UserID, Email: u.Email}, courseID)
	if err != nil {
		pc.count(c.UserContext(), counter.CheckoutFailed)
		return nil, err
	}
	pc.count(c.UserContext(), counter.CheckoutInitiated)
	return res, nil
}

func checkoutErrorResponse(err error) (int, string, string) {
	var upErr *payment.UpstreamInitiationError
	switch {
	case errors.Is(err, payment.ErrItemNotFound):
		return fiber.StatusNotFound, "item_not_found", "Course not found"
	case errors.Is(err, payment.ErrAlreadyEnrolled):
		return fiber.StatusConflict, "already_enrolled", "You are already enrolled in this course"
	case errors.Is(err, payment.ErrGatewayNotConfigured):
		return fiber.StatusServiceUnavailable, "gateway_not_configured", "Payments are temporarily unavailable"
	case errors.Is(err, payment.ErrInvalidAmount):
		return fiber.StatusUnprocessableEntity, "invalid_amount", "This course cannot be purchased right now"
	case errors.Is(err, payment.ErrInvalidBuyer):
		return fiber.StatusUnprocessableEntity, "invalid_buyer", "Your account needs an email address to pay"
	case errors.As(err, &upErr):
		return fiber.StatusBadGateway, "upstream_initiation_failed", upErr.Message
	case errors.Is(err, payment.ErrUpstreamUnavailable):
		return fiber.StatusBadGateway, "upstream_unavailable", "Payment provider unreachable, please retry"
	default:
		log.Errorf("[Checkout] Unexpected error: %v", err)
		return fiber.StatusInternalServerError, "internal_error", "Checkout failed"
	}
}

// HandleCheckoutCallback renders the page the processor redirects back to.
// The page polls the enrollment status endpoint.
func (pc *PaymentController) HandleCheckoutCallback(c *fiber.Ctx) error {
	ref, courseID, err := callbackTarget(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).Render("checkout/callback", fiber.Map{
			"Error": "This payment link is invalid.",
		})
	}
	return c.Render("checkout/callback", fiber.Map{
		"Reference":  ref.String(),
		"CourseID":   courseID,
		"StatusURL":  "/api/v1/enrollments/" + strconv.FormatUint(uint64(courseID), 10) + "/status",
		"IntervalMs": pc.pollConfig.Interval.Milliseconds(),
		"TimeoutMs":  pc.pollConfig.Timeout.Milliseconds(),
	})
}

// HandleEnrollmentStatus is a point lookup for the session user.
func (pc *PaymentController) HandleEnrollmentStatus(c *fiber.Ctx, courseID uint) error {
	ok, err := pc.enrollments.Exists(c.UserContext(), usercontext.GetUserID(c), courseID)
	if err != nil {
		log.Errorf("[Enrollment] Status lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "status lookup failed")
	}
	return c.JSON(fiber.Map{"enrolled": ok})
}

// HandleVerifyPayment long-polls until the enrollment for the callback's
// reference exists or the verification window closes.
func (pc *PaymentController) HandleVerifyPayment(c *fiber.Ctx, reference string, courseID uint) error {
	ref, err := checkTarget(reference, courseID)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_reference", err.Error())
	}
	userID := usercontext.GetUserID(c)
	if ref.BuyerID != userID {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "reference belongs to another account")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), pc.pollConfig.Timeout+5*time.Second)
	defer cancel()

	p := poller.New(pc.pollConfig, pc.enrollments)
	h := p.Start(ctx, poller.Target{UserID: userID, CourseID: courseID})
	defer h.Cancel()

	res, err := h.Wait(ctx)
	if err != nil {
		res.Status = poller.StatusCanceled
	}
	return c.JSON(fiber.Map{
		"status":   res.Status,
		"message":  res.Status.Message(),
		"enrolled": res.Status == poller.StatusEnrolled,
	})
}

// callbackTarget parses the reference and cross-checks it with the
// course_id query field.
func callbackTarget(c *fiber.Ctx) (payment.Reference, uint, error) {
	courseID, err := parseID(c.Query("course_id"))
	if err != nil {
		return payment.Reference{}, 0, payment.ErrInvalidReference
	}
	ref, err := checkTarget(c.Query("reference"), courseID)
	return ref, courseID, err
}

func checkTarget(reference string, courseID uint) (payment.Reference, error) {
	ref, err := payment.ParseReference(reference)
	if err != nil {
		return ref, err
	}
	if courseID == 0 {
		return ref, payment.ErrInvalidReference
	}
	if ref.CourseID != courseID {
		return ref, errors.New("course_id does not match reference")
	}
	return ref, nil
}

// HandlePaystackWebhook passes the raw body to the receiver. The status
// code tells the processor whether to retry.
func (pc *PaymentController) HandlePaystackWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(paystack.SignatureHeader))

	out := pc.receiver.Handle(c.UserContext(), rawBody, signature)

	ctx := c.UserContext()
	switch {
	case out.Ignored:
		pc.count(ctx, counter.WebhookIgnored)
	case out.Duplicate:
		pc.count(ctx, counter.WebhookDuplicate)
	case out.State == payment.StateEnrolled:
		pc.count(ctx, counter.WebhookEnrolled)
		if pc.counters != nil && out.Enrollment != nil {
			if err := pc.counters.AddCourseSale(ctx, out.Enrollment.CourseID); err != nil {
				log.Warnf("[Webhook] Failed to count sale: %v", err)
			}
		}
		pc.sendReceipt(out)
	default:
		pc.count(ctx, counter.WebhookRejected)
	}

	return c.Status(out.HTTPStatus).JSON(fiber.Map{
		"status":    out.Code,
		"reference": out.Reference,
	})
}

func (pc *PaymentController) sendReceipt(out payment.Outcome) {
	if pc.receipts == nil || out.Enrollment == nil || out.CustomerEmail == "" {
		return
	}
	receipt := mail.EnrollmentReceipt{
		To:        out.CustomerEmail,
		CourseID:  out.Enrollment.CourseID,
		Reference: out.Reference,
		CourseURL: pc.courseBaseURL + "/courses/" + strconv.FormatUint(uint64(out.Enrollment.CourseID), 10),
	}
	go func() {
		if err := pc.receipts.SendEnrollmentReceipt(receipt); err != nil {
			log.Warnf("[Webhook] Receipt for %s not sent: %v", receipt.Reference, err)
		}
	}()
}

func (pc *PaymentController) count(ctx context.Context, name string) {
	if pc.counters == nil {
		return
	}
	if err := pc.counters.Incr(ctx, name); err != nil {
		log.Warnf("[Payment] Failed to count %s: %v", name, err)
	}
}

func parseID(raw string) (uint, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || v == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(v), nil
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}
