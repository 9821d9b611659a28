package payment

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound               = errors.New("payment: course not found")
	ErrAlreadyEnrolled            = errors.New("payment: already enrolled in course")
	ErrGatewayNotConfigured       = errors.New("payment: payment gateway not configured")
	ErrInvalidAmount              = errors.New("payment: course price cannot be charged")
	ErrInvalidBuyer               = errors.New("payment: buyer id and email are required")
	ErrUpstreamUnavailable        = errors.New("payment: processor unavailable")
	ErrSignatureInvalid           = errors.New("payment: webhook signature invalid")
	ErrInvalidPayload             = errors.New("payment: webhook payload invalid")
	ErrMetadataMissing            = errors.New("payment: course_id or buyer_id missing from metadata")
	ErrUpstreamVerificationFailed = errors.New("payment: processor did not confirm the transaction")
	ErrInvalidReference           = errors.New("payment: invalid reference")
)

// UpstreamInitiationError is returned when the processor refused to create
// a checkout session. Message is the processor's own text.
type UpstreamInitiationError struct {
	StatusCode int
	Message    string
	Temporary  bool
	Err        error
}

func (e *UpstreamInitiationError) Error() string {
	return fmt.Sprintf("payment: processor rejected initialization: %s", e.Message)
}

func (e *UpstreamInitiationError) Unwrap() error {
	return e.Err
}
