package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/gatewaysettings"
	"github.com/ManuelReschke/CourseFox/internal/pkg/mail"
	"github.com/ManuelReschke/CourseFox/internal/pkg/payment"
	"github.com/ManuelReschke/CourseFox/internal/pkg/paystack"
	"github.com/ManuelReschke/CourseFox/internal/pkg/poller"
	"github.com/ManuelReschke/CourseFox/internal/pkg/security"
	"github.com/ManuelReschke/CourseFox/internal/pkg/usercontext"
)

type stubInitiator struct {
	res   *payment.CheckoutResult
	err   error
	buyer payment.Buyer
}

func (s *stubInitiator) Initiate(_ context.Context, buyer payment.Buyer, courseID uint) (*payment.CheckoutResult, error) {
	s.buyer = buyer
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

type stubReceiver struct {
	out       payment.Outcome
	body      []byte
	signature string
}

func (s *stubReceiver) Handle(_ context.Context, body []byte, signature string) payment.Outcome {
	s.body = body
	s.signature = signature
	return s.out
}

type stubEnrollments struct {
	enrolled atomic.Bool
	err      error
}

func (s *stubEnrollments) Exists(context.Context, uint, uint) (bool, error) {
	return s.enrolled.Load(), s.err
}

type stubCounters struct {
	incr  map[string]int
	sales map[uint]int
}

func newStubCounters() *stubCounters {
	return &stubCounters{incr: map[string]int{}, sales: map[uint]int{}}
}

func (s *stubCounters) Incr(_ context.Context, name string) error {
	s.incr[name]++
	return nil
}

func (s *stubCounters) AddCourseSale(_ context.Context, courseID uint) error {
	s.sales[courseID]++
	return nil
}

func (s *stubCounters) CourseSales(context.Context) (map[uint]int64, error) {
	out := map[uint]int64{}
	for k, v := range s.sales {
		out[k] = int64(v)
	}
	return out, nil
}

func (s *stubCounters) Snapshot(context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	for k, v := range s.incr {
		out[k] = int64(v)
	}
	return out, nil
}

var testBuyer = usercontext.UserContext{UserID: 7, Email: "ada@example.com", IsLoggedIn: true}

func newPaymentApp(pc *PaymentController, u usercontext.UserContext) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		usercontext.SetUserContext(c, u)
		return c.Next()
	})
	app.Post("/api/v1/checkout", pc.HandleCheckoutAPI)
	app.Post("/courses/:id/purchase", pc.HandlePurchaseForm)
	app.Get("/api/v1/enrollments/:course_id/status", func(c *fiber.Ctx) error {
		id, _ := parseID(c.Params("course_id"))
		return pc.HandleEnrollmentStatus(c, id)
	})
	app.Get("/api/v1/payments/verify", func(c *fiber.Ctx) error {
		id, _ := parseID(c.Query("course_id"))
		return pc.HandleVerifyPayment(c, c.Query("reference"), id)
	})
	app.Post("/webhooks/paystack", pc.HandlePaystackWebhook)
	return app
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestHandleCheckoutAPISuccess(t *testing.T) {
	init := &stubInitiator{res: &payment.CheckoutResult{
		RedirectURL: "https://checkout.paystack.com/abc",
		Reference:   "crs-10-7-1767225600000-0123456789abcdef",
		AmountMinor: 1500000,
		Currency:    "NGN",
	}}
	counters := newStubCounters()
	app := newPaymentApp(NewPaymentController(init, &stubReceiver{}, &stubEnrollments{}, counters, poller.Config{}), testBuyer)

	req := httptest.NewRequest("POST", "/api/v1/checkout", strings.NewReader(`{"course_id":10}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "https://checkout.paystack.com/abc", body["redirect_url"])
	assert.Equal(t, float64(1500000), body["amount"])
	assert.Equal(t, payment.Buyer{ID: 7, Email: "ada@example.com"}, init.buyer)
	assert.Equal(t, 1, counters.incr["checkout_initiated"])
}

func TestHandleCheckoutAPIErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"missing course", `{}`, nil, fiber.StatusUnprocessableEntity, "validation_failed"},
		{"malformed body", `{`, nil, fiber.StatusBadRequest, "bad_request"},
		{"not found", `{"course_id":1}`, payment.ErrItemNotFound, fiber.StatusNotFound, "item_not_found"},
		{"already enrolled", `{"course_id":1}`, payment.ErrAlreadyEnrolled, fiber.StatusConflict, "already_enrolled"},
		{"not configured", `{"course_id":1}`, fmt.Errorf("%w: %w", payment.ErrGatewayNotConfigured, gatewaysettings.ErrNotConfigured), fiber.StatusServiceUnavailable, "gateway_not_configured"},
		{"bad amount", `{"course_id":1}`, payment.ErrInvalidAmount, fiber.StatusUnprocessableEntity, "invalid_amount"},
		{"bad buyer", `{"course_id":1}`, payment.ErrInvalidBuyer, fiber.StatusUnprocessableEntity, "invalid_buyer"},
		{"rejected", `{"course_id":1}`, &payment.UpstreamInitiationError{StatusCode: 400, Message: "Invalid key"}, fiber.StatusBadGateway, "upstream_initiation_failed"},
		{"unreachable", `{"course_id":1}`, fmt.Errorf("%w: dial tcp", payment.ErrUpstreamUnavailable), fiber.StatusBadGateway, "upstream_unavailable"},
		{"unexpected", `{"course_id":1}`, errors.New("boom"), fiber.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			init := &stubInitiator{err: tt.err}
			app := newPaymentApp(NewPaymentController(init, &stubReceiver{}, &stubEnrollments{}, nil, poller.Config{}), testBuyer)

			req := httptest.NewRequest("POST", "/api/v1/checkout", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeBody(t, resp)["error"])
		})
	}
}

func TestHandlePurchaseFormRedirects(t *testing.T) {
	init := &stubInitiator{res: &payment.CheckoutResult{RedirectURL: "https://checkout.paystack.com/abc"}}
	app := newPaymentApp(NewPaymentController(init, &stubReceiver{}, &stubEnrollments{}, nil, poller.Config{}), testBuyer)

	resp, err := app.Test(httptest.NewRequest("POST", "/courses/10/purchase", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "https://checkout.paystack.com/abc", resp.Header.Get("Location"))

	init.err = payment.ErrAlreadyEnrolled
	req := httptest.NewRequest("POST", "/courses/10/purchase", nil)
	req.Header.Set("Referer", "/courses/10")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/courses/10", resp.Header.Get("Location"))
}

func TestHandleEnrollmentStatus(t *testing.T) {
	enrollments := &stubEnrollments{}
	app := newPaymentApp(NewPaymentController(&stubInitiator{}, &stubReceiver{}, enrollments, nil, poller.Config{}), testBuyer)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/enrollments/10/status", nil))
	require.NoError(t, err)
	assert.Equal(t, false, decodeBody(t, resp)["enrolled"])

	enrollments.enrolled.Store(true)
	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/enrollments/10/status", nil))
	require.NoError(t, err)
	assert.Equal(t, true, decodeBody(t, resp)["enrolled"])
}

func TestHandleVerifyPayment(t *testing.T) {
	ref := "crs-10-7-1767225600000-0123456789abcdef"
	cfg := poller.Config{Interval: 10 * time.Millisecond, Timeout: 50 * time.Millisecond}

	t.Run("enrolled", func(t *testing.T) {
		enrollments := &stubEnrollments{}
		enrollments.enrolled.Store(true)
		app := newPaymentApp(NewPaymentController(&stubInitiator{}, &stubReceiver{}, enrollments, nil, cfg), testBuyer)

		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/payments/verify?reference="+ref+"&course_id=10", nil))
		require.NoError(t, err)
		body := decodeBody(t, resp)
		assert.Equal(t, "enrolled", body["status"])
		assert.Equal(t, true, body["enrolled"])
	})

	t.Run("window exceeded", func(t *testing.T) {
		app := newPaymentApp(NewPaymentController(&stubInitiator{}, &stubReceiver{}, &stubEnrollments{}, nil, cfg), testBuyer)

		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/payments/verify?reference="+ref+"&course_id=10", nil), 2000)
		require.NoError(t, err)
		body := decodeBody(t, resp)
		assert.Equal(t, "window_exceeded", body["status"])
		assert.Equal(t, false, body["enrolled"])
	})

	t.Run("course mismatch", func(t *testing.T) {
		app := newPaymentApp(NewPaymentController(&stubInitiator{}, &stubReceiver{}, &stubEnrollments{}, nil, cfg), testBuyer)
		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/payments/verify?reference="+ref+"&course_id=11", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing course id", func(t *testing.T) {
		app := newPaymentApp(NewPaymentController(&stubInitiator{}, &stubReceiver{}, &stubEnrollments{}, nil, cfg), testBuyer)
		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/payments/verify?reference="+ref, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("other buyer", func(t *testing.T) {
		other := usercontext.UserContext{UserID: 8, IsLoggedIn: true}
		app := newPaymentApp(NewPaymentController(&stubInitiator{}, &stubReceiver{}, &stubEnrollments{}, nil, cfg), other)
		resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/payments/verify?reference="+ref+"&course_id=10", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}

func TestHandlePaystackWebhook(t *testing.T) {
	tests := []struct {
		name    string
		out     payment.Outcome
		counter string
	}{
		{"enrolled", payment.Outcome{State: payment.StateEnrolled, HTTPStatus: 200, Code: payment.CodeEnrolled, Reference: "r1", Enrollment: &models.Enrollment{UserID: 7, CourseID: 10}}, "webhook_enrolled"},
		{"duplicate", payment.Outcome{State: payment.StateEnrolled, HTTPStatus: 200, Code: payment.CodeDuplicate, Reference: "r1", Duplicate: true}, "webhook_duplicate"},
		{"ignored", payment.Outcome{State: payment.StateSignatureVerified, HTTPStatus: 200, Code: payment.CodeIgnored, Ignored: true}, "webhook_ignored"},
		{"rejected", payment.Outcome{State: payment.StateRejected, HTTPStatus: 400, Code: payment.CodeInvalidSignature}, "webhook_rejected"},
		{"unavailable", payment.Outcome{State: payment.StateRejected, HTTPStatus: 502, Code: payment.CodeVerificationUnavailable, Reference: "r1"}, "webhook_rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receiver := &stubReceiver{out: tt.out}
			counters := newStubCounters()
			app := newPaymentApp(NewPaymentController(&stubInitiator{}, receiver, &stubEnrollments{}, counters, poller.Config{}), usercontext.UserContext{})

			payload := `{"event":"charge.success","data":{"reference":"r1"}}`
			req := httptest.NewRequest("POST", "/webhooks/paystack", strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(paystack.SignatureHeader, " abc123 ")
			resp, err := app.Test(req)
			require.NoError(t, err)

			assert.Equal(t, tt.out.HTTPStatus, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.Equal(t, tt.out.Code, body["status"])
			assert.Equal(t, payload, string(receiver.body))
			assert.Equal(t, "abc123", receiver.signature)
			assert.Equal(t, 1, counters.incr[tt.counter])
			if tt.out.Enrollment != nil {
				assert.Equal(t, 1, counters.sales[10])
			}
		})
	}
}

type chanReceipts chan mail.EnrollmentReceipt

func (c chanReceipts) SendEnrollmentReceipt(r mail.EnrollmentReceipt) error {
	c <- r
	return nil
}

func TestHandlePaystackWebhookSendsReceipt(t *testing.T) {
	receiver := &stubReceiver{out: payment.Outcome{
		State:         payment.StateEnrolled,
		HTTPStatus:    200,
		Code:          payment.CodeEnrolled,
		Reference:     "crs-10-7-1767225600000-0123456789abcdef",
		CustomerEmail: "ada@example.com",
		Enrollment:    &models.Enrollment{UserID: 7, CourseID: 10},
	}}
	receipts := make(chanReceipts, 1)
	pc := NewPaymentController(&stubInitiator{}, receiver, &stubEnrollments{}, nil, poller.Config{}).
		WithReceipts(receipts, "https://coursefox.test/")
	app := newPaymentApp(pc, usercontext.UserContext{})

	resp, err := app.Test(httptest.NewRequest("POST", "/webhooks/paystack", strings.NewReader(`{}`)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	select {
	case r := <-receipts:
		assert.Equal(t, "ada@example.com", r.To)
		assert.Equal(t, "https://coursefox.test/courses/10", r.CourseURL)
	case <-time.After(time.Second):
		t.Fatal("receipt not sent")
	}

	receiver.out.Duplicate = true
	receiver.out.Code = payment.CodeDuplicate
	_, err = app.Test(httptest.NewRequest("POST", "/webhooks/paystack", strings.NewReader(`{}`)))
	require.NoError(t, err)
	select {
	case <-receipts:
		t.Fatal("duplicate delivery sent a receipt")
	case <-time.After(50 * time.Millisecond):
	}
}

type stubSettings struct {
	view *gatewaysettings.View
	err  error
	in   gatewaysettings.UpsertInput
}

func (s *stubSettings) Get(context.Context, gatewaysettings.Actor, string) (*gatewaysettings.View, error) {
	return s.view, s.err
}

func (s *stubSettings) Upsert(_ context.Context, _ gatewaysettings.Actor, _ string, in gatewaysettings.UpsertInput) (*gatewaysettings.View, error) {
	s.in = in
	return s.view, s.err
}

type stubSessionStats map[string]int64

func (s stubSessionStats) CountByStatus(context.Context) (map[string]int64, error) {
	return s, nil
}

func newAdminApp(ac *AdminPaymentController) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		usercontext.SetUserContext(c, usercontext.UserContext{UserID: 1, IsLoggedIn: true, IsAdmin: true})
		return c.Next()
	})
	app.Get("/gateways/:name", ac.HandleGetGateway)
	app.Put("/gateways/:name", ac.HandleUpsertGateway)
	app.Get("/stats", ac.HandlePaymentStats)
	return app
}

func TestAdminGatewayErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"forbidden", gatewaysettings.ErrForbidden, fiber.StatusForbidden},
		{"missing", gatewaysettings.ErrNotFound, fiber.StatusNotFound},
		{"secret required", gatewaysettings.ErrSecretRequired, fiber.StatusUnprocessableEntity},
		{"unreadable", fmt.Errorf("decrypt: %w", &security.DecryptionError{}), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAdminApp(NewAdminPaymentController(&stubSettings{err: tt.err}, stubSessionStats{}, nil, nil))
			resp, err := app.Test(httptest.NewRequest("GET", "/gateways/paystack", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAdminUpsertGateway(t *testing.T) {
	settings := &stubSettings{view: &gatewaysettings.View{Name: "paystack", PublicKey: "pk_test_1", SecretKeyMasked: "********abcd", IsActive: true}}
	app := newAdminApp(NewAdminPaymentController(settings, stubSessionStats{}, nil, nil))

	req := httptest.NewRequest("PUT", "/gateways/paystack", strings.NewReader(`{"public_key":"pk_test_1","secret_key":"sk_test_abcd","is_active":true}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "********abcd", body["secret_key_masked"])
	require.NotNil(t, settings.in.SecretKey)
	assert.Equal(t, "sk_test_abcd", *settings.in.SecretKey)
}

func TestAdminPaymentStats(t *testing.T) {
	counters := newStubCounters()
	counters.incr["webhook_enrolled"] = 3
	counters.sales[10] = 2
	app := newAdminApp(NewAdminPaymentController(&stubSettings{}, stubSessionStats{"initiated": 2, "enrolled": 5}, nil, counters))

	resp, err := app.Test(httptest.NewRequest("GET", "/stats", nil))
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, map[string]interface{}{"initiated": float64(2), "enrolled": float64(5)}, body["checkout_sessions"])
	assert.Equal(t, map[string]interface{}{"webhook_enrolled": float64(3)}, body["counters"])
	assert.Equal(t, map[string]interface{}{"10": float64(2)}, body["course_sales"])
}
