package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/paystack"
)

const (
	DefaultStaleAfter  = 15 * time.Minute
	DefaultGiveUpAfter = 24 * time.Hour
	defaultSweepLimit  = 100
)

// ReconcileStatus is the result of checking one reference with the processor.
type ReconcileStatus string

const (
	ReconcileEnrolled  ReconcileStatus = "enrolled"
	ReconcileDuplicate ReconcileStatus = "duplicate"
	ReconcilePending   ReconcileStatus = "pending"
	ReconcileFailed    ReconcileStatus = "failed"
)

type ReconcileResult struct {
	Reference string
	Status    ReconcileStatus
	// ProcessorStatus is the raw transaction status, when one was returned.
	ProcessorStatus string
}

// StaleSessionStore lists checkout attempts that never saw a webhook.
type StaleSessionStore interface {
	SessionStore
	ListStale(ctx context.Context, createdBefore, createdAfter time.Time, limit int) ([]models.CheckoutSession, error)
}

// Reconciler settles checkout sessions whose webhook was lost, using the
// same verification path as the Receiver.
type Reconciler struct {
	secrets     SecretSource
	processor   Processor
	enrollments EnrollmentStore
	sessions    StaleSessionStore
	cfg         Config

	StaleAfter  time.Duration
	GiveUpAfter time.Duration
	now         func() time.Time
}

func NewReconciler(secrets SecretSource, processor Processor, enrollments EnrollmentStore, sessions StaleSessionStore, cfg Config) *Reconciler {
	return &Reconciler{
		secrets:     secrets,
		processor:   processor,
		enrollments: enrollments,
		sessions:    sessions,
		cfg:         cfg.withDefaults(),
		StaleAfter:  DefaultStaleAfter,
		GiveUpAfter: DefaultGiveUpAfter,
		now:         time.Now,
	}
}

// Reconcile verifies reference and enrolls the buyer when it was paid.
// Temporary processor failures are returned as errors so the job retries.
func (r *Reconciler) Reconcile(ctx context.Context, reference string) (ReconcileResult, error) {
	res := ReconcileResult{Reference: reference}

	ref, err := ParseReference(reference)
	if err != nil {
		return res, err
	}
	want := paystack.Metadata{CourseID: paystack.ID(ref.CourseID), BuyerID: paystack.ID(ref.BuyerID)}

	secret, err := loadSecret(ctx, r.secrets, r.cfg.GatewayName)
	if err != nil {
		return res, err
	}

	tx, err := confirmPayment(ctx, r.processor, r.cfg.CallTimeout, secret, reference, want)
	if tx != nil {
		res.ProcessorStatus = tx.Status
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrUpstreamUnavailable):
			return res, err
		case tx == nil:
			// Unknown to the processor: the buyer never reached the payment page.
			res.Status = ReconcilePending
			return res, nil
		case isFinalFailure(tx.Status):
			res.Status = ReconcileFailed
			if mErr := markSession(ctx, r.sessions, reference, models.CheckoutStatusFailed); mErr != nil {
				return res, fmt.Errorf("mark session %s failed: %w", reference, mErr)
			}
			log.Infof("[Reconcile] %s closed as %s", reference, tx.Status)
			return res, nil
		case !tx.Succeeded():
			res.Status = ReconcilePending
			return res, nil
		default:
			res.Status = ReconcileFailed
			return res, err
		}
	}

	if _, err := matchSession(ctx, r.sessions, reference, tx, want); err != nil {
		if errors.Is(err, ErrUpstreamVerificationFailed) {
			res.Status = ReconcileFailed
		}
		return res, err
	}

	_, created, err := r.enrollments.Enroll(ctx, ref.BuyerID, ref.CourseID)
	if err != nil {
		return res, err
	}
	if err := markSession(ctx, r.sessions, reference, models.CheckoutStatusEnrolled); err != nil {
		log.Errorf("[Reconcile] Failed to mark session %s enrolled: %v", reference, err)
	}

	if created {
		res.Status = ReconcileEnrolled
		log.Infof("[Reconcile] Enrolled user %d in course %d from %s", ref.BuyerID, ref.CourseID, reference)
	} else {
		res.Status = ReconcileDuplicate
	}
	return res, nil
}

// StaleReferences returns initiated sessions older than StaleAfter and
// younger than GiveUpAfter.
func (r *Reconciler) StaleReferences(ctx context.Context) ([]string, error) {
	now := r.now()
	sessions, err := r.sessions.ListStale(ctx, now.Add(-r.StaleAfter), now.Add(-r.GiveUpAfter), defaultSweepLimit)
	if err != nil {
		return nil, fmt.Errorf("list stale sessions: %w", err)
	}
	refs := make([]string, 0, len(sessions))
	for _, s := range sessions {
		refs = append(refs, s.Reference)
	}
	return refs, nil
}

func isFinalFailure(status string) bool {
	switch status {
	case paystack.StatusFailed, paystack.StatusAbandoned, paystack.StatusReversed:
		return true
	}
	return false
}
