package payment

import (
	"context"
	"time"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/paystack"
)

const (
	DefaultGatewayName = models.PaymentGatewayPaystack
	DefaultCallTimeout = 10 * time.Second
)

// SecretSource yields the cleartext processor secret for server-side use.
// It is read on every call so rotated keys apply to the next request.
type SecretSource interface {
	SecretForServerUse(ctx context.Context, name string) (string, error)
}

// Processor is the hosted-checkout provider.
type Processor interface {
	InitializeTransaction(ctx context.Context, secretKey string, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
	VerifyTransaction(ctx context.Context, secretKey, reference string) (*paystack.Transaction, error)
}

type CourseFinder interface {
	GetByID(ctx context.Context, id uint) (*models.Course, error)
}

// EnrollmentStore is satisfied by enrollment.Writer.
type EnrollmentStore interface {
	Exists(ctx context.Context, userID, courseID uint) (bool, error)
	Enroll(ctx context.Context, userID, courseID uint) (*models.Enrollment, bool, error)
}

// SessionStore persists checkout attempts. It is optional everywhere.
type SessionStore interface {
	CreateIfNotExists(ctx context.Context, s *models.CheckoutSession) (bool, error)
	GetByReference(ctx context.Context, reference string) (*models.CheckoutSession, error)
	UpdateStatus(ctx context.Context, reference, status string) error
}

// Config is shared by the initiator, receiver and reconciler.
type Config struct {
	GatewayName string
	// CallbackBaseURL is the public origin the processor redirects back to.
	CallbackBaseURL string
	// CallTimeout bounds each outbound processor call.
	CallTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.GatewayName == "" {
		c.GatewayName = DefaultGatewayName
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	return c
}
