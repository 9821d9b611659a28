package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/paystack"
)

// confirmPayment asks the processor whether reference was paid for want.
// A transaction that exists but did not succeed is returned together with
// ErrUpstreamVerificationFailed so callers can inspect its status.
func confirmPayment(ctx context.Context, processor Processor, timeout time.Duration, secret, reference string, want paystack.Metadata) (*paystack.Transaction, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := processor.VerifyTransaction(callCtx, secret, reference)
	if err != nil {
		var apiErr *paystack.APIError
		if !paystack.IsTemporary(err) && errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s", ErrUpstreamVerificationFailed, apiErr.Message)
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	if tx == nil {
		return nil, fmt.Errorf("%w: empty verify response", ErrUpstreamUnavailable)
	}

	if tx.Reference != "" && tx.Reference != reference {
		return tx, fmt.Errorf("%w: reference mismatch %q", ErrUpstreamVerificationFailed, tx.Reference)
	}
	if !tx.Succeeded() {
		return tx, fmt.Errorf("%w: status %q", ErrUpstreamVerificationFailed, tx.Status)
	}

	md, err := paystack.ParseMetadata(tx.Metadata)
	if err != nil {
		return tx, fmt.Errorf("%w: %v", ErrUpstreamVerificationFailed, err)
	}
	if (md.CourseID != 0 && md.CourseID != want.CourseID) || (md.BuyerID != 0 && md.BuyerID != want.BuyerID) {
		return tx, fmt.Errorf("%w: metadata mismatch", ErrUpstreamVerificationFailed)
	}
	return tx, nil
}

// matchSession compares a verified transaction with the checkout attempt
// recorded under reference, if there is one. Storage errors are returned
// unwrapped.
func matchSession(ctx context.Context, sessions SessionStore, reference string, tx *paystack.Transaction, want paystack.Metadata) (*models.CheckoutSession, error) {
	if sessions == nil {
		return nil, nil
	}
	s, err := sessions.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	switch {
	case s.UserID != uint(want.BuyerID) || s.CourseID != uint(want.CourseID):
		return s, fmt.Errorf("%w: session belongs to user %d course %d", ErrUpstreamVerificationFailed, s.UserID, s.CourseID)
	case s.AmountMinor != tx.Amount:
		return s, fmt.Errorf("%w: amount %d, expected %d", ErrUpstreamVerificationFailed, tx.Amount, s.AmountMinor)
	case tx.Currency != "" && !strings.EqualFold(s.Currency, tx.Currency):
		return s, fmt.Errorf("%w: currency %s, expected %s", ErrUpstreamVerificationFailed, tx.Currency, s.Currency)
	}
	return s, nil
}

func markSession(ctx context.Context, sessions SessionStore, reference, status string) error {
	if sessions == nil {
		return nil
	}
	return sessions.UpdateStatus(ctx, reference, status)
}
