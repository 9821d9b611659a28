package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/paystack"
	"github.com/ManuelReschke/CourseFox/internal/pkg/security"
)

type State string

const (
	StateReceived              State = "received"
	StateSignatureVerified     State = "signature_verified"
	StateTransactionReverified State = "transaction_reverified"
	StateEnrolled              State = "enrolled"
	StateRejected              State = "rejected"
)

// Response codes written back to the processor.
const (
	CodeGatewayNotConfigured    = "gateway_not_configured"
	CodeInvalidSignature        = "invalid_signature"
	CodeInvalidPayload          = "invalid_payload"
	CodeIgnored                 = "ignored"
	CodeMetadataMissing         = "metadata_missing"
	CodeVerificationFailed      = "verification_failed"
	CodeVerificationUnavailable = "verification_unavailable"
	CodeDuplicate               = "duplicate"
	CodeEnrolled                = "enrolled"
	CodeInternalError           = "internal_error"
)

// Outcome is the terminal result of one webhook delivery.
type Outcome struct {
	State         State
	HTTPStatus    int
	Code          string
	Event         string
	Reference     string
	CustomerEmail string
	Duplicate     bool
	Ignored       bool
	Enrollment    *models.Enrollment
	Err           error
}

// Receiver turns signed processor notifications into enrollments.
type Receiver struct {
	secrets     SecretSource
	signer      security.Signer
	processor   Processor
	enrollments EnrollmentStore
	sessions    SessionStore
	cfg         Config
}

// NewReceiver builds a Receiver. A nil signer falls back to HMAC-SHA512,
// the scheme the processor signs with.
func NewReceiver(secrets SecretSource, signer security.Signer, processor Processor, enrollments EnrollmentStore, sessions SessionStore, cfg Config) *Receiver {
	if signer == nil {
		signer = security.NewHMACSHA512Signer()
	}
	return &Receiver{
		secrets:     secrets,
		signer:      signer,
		processor:   processor,
		enrollments: enrollments,
		sessions:    sessions,
		cfg:         cfg.withDefaults(),
	}
}

// Handle runs one delivery through received, signature_verified,
// transaction_reverified and enrolled. Every exit is recorded in the
// returned Outcome; Handle itself never fails.
func (r *Receiver) Handle(ctx context.Context, body []byte, signature string) Outcome {
	out := Outcome{State: StateReceived}

	secret, err := loadSecret(ctx, r.secrets, r.cfg.GatewayName)
	if err != nil {
		if errors.Is(err, ErrGatewayNotConfigured) {
			return r.reject(out, http.StatusInternalServerError, CodeGatewayNotConfigured, err)
		}
		return r.reject(out, http.StatusInternalServerError, CodeInternalError, err)
	}

	if !r.signer.Verify(body, signature, []byte(secret)) {
		return r.reject(out, http.StatusBadRequest, CodeInvalidSignature, ErrSignatureInvalid)
	}
	out.State = StateSignatureVerified

	ev, err := paystack.ParseEvent(body)
	if err != nil {
		return r.reject(out, http.StatusBadRequest, CodeInvalidPayload, errors.Join(ErrInvalidPayload, err))
	}
	out.Event = ev.Event

	if ev.Event != paystack.EventChargeSuccess {
		log.Infof("[Webhook] Ignoring event %s", ev.Event)
		out.HTTPStatus = http.StatusOK
		out.Code = CodeIgnored
		out.Ignored = true
		return out
	}

	data, err := ev.Charge()
	if err != nil {
		return r.reject(out, http.StatusBadRequest, CodeInvalidPayload, errors.Join(ErrInvalidPayload, err))
	}
	out.Reference = data.Reference
	out.CustomerEmail = data.Customer.Email
	if data.Reference == "" {
		return r.reject(out, http.StatusBadRequest, CodeInvalidPayload, ErrInvalidPayload)
	}

	md, err := paystack.ParseMetadata(data.Metadata)
	if err != nil || md.CourseID == 0 || md.BuyerID == 0 {
		return r.reject(out, http.StatusBadRequest, CodeMetadataMissing, errors.Join(ErrMetadataMissing, err))
	}

	tx, err := confirmPayment(ctx, r.processor, r.cfg.CallTimeout, secret, data.Reference, md)
	if err != nil {
		if errors.Is(err, ErrUpstreamUnavailable) {
			return r.reject(out, http.StatusBadGateway, CodeVerificationUnavailable, err)
		}
		return r.reject(out, http.StatusBadRequest, CodeVerificationFailed, err)
	}
	if data.Amount != 0 && data.Amount != tx.Amount {
		return r.reject(out, http.StatusBadRequest, CodeVerificationFailed, ErrUpstreamVerificationFailed)
	}
	if _, err := matchSession(ctx, r.sessions, data.Reference, tx, md); err != nil {
		if errors.Is(err, ErrUpstreamVerificationFailed) {
			return r.reject(out, http.StatusBadRequest, CodeVerificationFailed, err)
		}
		return r.reject(out, http.StatusInternalServerError, CodeInternalError, err)
	}
	out.State = StateTransactionReverified

	enrollment, created, err := r.enrollments.Enroll(ctx, uint(md.BuyerID), uint(md.CourseID))
	if err != nil {
		return r.reject(out, http.StatusInternalServerError, CodeInternalError, err)
	}
	if err := markSession(ctx, r.sessions, data.Reference, models.CheckoutStatusEnrolled); err != nil {
		log.Errorf("[Webhook] Failed to mark session %s enrolled: %v", data.Reference, err)
	}

	out.State = StateEnrolled
	out.HTTPStatus = http.StatusOK
	out.Enrollment = enrollment
	if created {
		out.Code = CodeEnrolled
		log.Infof("[Webhook] Enrolled user %d in course %d via %s", md.BuyerID, md.CourseID, data.Reference)
	} else {
		out.Code = CodeDuplicate
		out.Duplicate = true
		log.Infof("[Webhook] Duplicate delivery for %s", data.Reference)
	}
	return out
}

func (r *Receiver) reject(out Outcome, status int, code string, err error) Outcome {
	out.State = StateRejected
	out.HTTPStatus = status
	out.Code = code
	out.Err = err
	if status >= http.StatusInternalServerError {
		log.Errorf("[Webhook] Rejected %s (%s): %v", out.Reference, code, err)
	} else {
		log.Warnf("[Webhook] Rejected %s (%s): %v", out.Reference, code, err)
	}
	return out
}
