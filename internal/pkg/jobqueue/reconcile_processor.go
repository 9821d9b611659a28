package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseFox/internal/pkg/payment"
)

// Reconciler is satisfied by payment.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context, reference string) (payment.ReconcileResult, error)
	StaleReferences(ctx context.Context) ([]string, error)
}

// Recorder counts reconciliation outcomes; metrics/counter.Counters
// satisfies it.
type Recorder interface {
	Incr(ctx context.Context, name string) error
}

// EnqueueReconcile schedules a reconcile_payment job for reference.
func (q *Queue) EnqueueReconcile(ctx context.Context, reference string) (*Job, error) {
	return q.EnqueueJob(ctx, JobTypeReconcilePayment, ReconcilePaymentJobPayload{Reference: reference}.ToMap())
}

// NewReconcileHandler runs payment reconciliation for queued references.
// Only processor outages are retried.
func NewReconcileHandler(r Reconciler, rec Recorder) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := ReconcilePaymentJobPayloadFromMap(job.Payload)
		if err != nil || payload.Reference == "" {
			return fmt.Errorf("%w: invalid reconcile payload: %v", ErrPermanent, err)
		}

		res, err := r.Reconcile(ctx, payload.Reference)
		if err != nil {
			if errors.Is(err, payment.ErrUpstreamUnavailable) {
				return err
			}
			record(ctx, rec, "reconcile_error")
			return fmt.Errorf("%w: %w", ErrPermanent, err)
		}

		record(ctx, rec, "reconcile_"+string(res.Status))
		log.Infof("[JobQueue] Reconciled %s: %s (processor status %q)", res.Reference, res.Status, res.ProcessorStatus)
		return nil
	}
}

func record(ctx context.Context, rec Recorder, name string) {
	if rec == nil {
		return
	}
	if err := rec.Incr(ctx, name); err != nil {
		log.Warnf("[JobQueue] Failed to record %s: %v", name, err)
	}
}
