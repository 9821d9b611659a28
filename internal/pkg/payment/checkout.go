package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/constants"
	"github.com/ManuelReschke/CourseFox/internal/pkg/gatewaysettings"
	"github.com/ManuelReschke/CourseFox/internal/pkg/paystack"
	"github.com/ManuelReschke/CourseFox/internal/pkg/security"
)

const CallbackPath = constants.CheckoutCallback

// Buyer is the authenticated principal purchasing a course.
type Buyer struct {
	ID    uint
	Email string
}

type CheckoutResult struct {
	RedirectURL string `json:"redirect_url"`
	Reference   string `json:"reference"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
}

// Initiator creates hosted checkout sessions.
type Initiator struct {
	courses     CourseFinder
	enrollments EnrollmentStore
	secrets     SecretSource
	processor   Processor
	sessions    SessionStore
	cfg         Config
	now         func() time.Time
}

func NewInitiator(courses CourseFinder, enrollments EnrollmentStore, secrets SecretSource, processor Processor, sessions SessionStore, cfg Config) *Initiator {
	return &Initiator{
		courses:     courses,
		enrollments: enrollments,
		secrets:     secrets,
		processor:   processor,
		sessions:    sessions,
		cfg:         cfg.withDefaults(),
		now:         time.Now,
	}
}

// Initiate validates the purchase and asks the processor for a checkout
// URL. Nothing is charged and no enrollment is written here.
func (i *Initiator) Initiate(ctx context.Context, buyer Buyer, courseID uint) (*CheckoutResult, error) {
	if buyer.ID == 0 || strings.TrimSpace(buyer.Email) == "" {
		return nil, ErrInvalidBuyer
	}

	course, err := i.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("load course %d: %w", courseID, err)
	}
	if !course.IsPublished {
		return nil, ErrItemNotFound
	}

	enrolled, err := i.enrollments.Exists(ctx, buyer.ID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if enrolled {
		return nil, ErrAlreadyEnrolled
	}

	secret, err := loadSecret(ctx, i.secrets, i.cfg.GatewayName)
	if err != nil {
		return nil, err
	}

	amount, err := ToMinorUnits(course.Price, course.Currency)
	if err != nil {
		return nil, err
	}

	ref := NewReference(course.ID, buyer.ID, i.now())
	callbackURL, err := i.callbackURL(ref.String(), course.ID)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(course.Currency)

	callCtx, cancel := context.WithTimeout(ctx, i.cfg.CallTimeout)
	defer cancel()

	resp, err := i.processor.InitializeTransaction(callCtx, secret, paystack.InitializeRequest{
		Email:       strings.TrimSpace(buyer.Email),
		Amount:      amount,
		Currency:    currency,
		Reference:   ref.String(),
		CallbackURL: callbackURL,
		Metadata: paystack.Metadata{
			CourseID: paystack.ID(course.ID),
			BuyerID:  paystack.ID(buyer.ID),
		},
	})
	if err != nil {
		var apiErr *paystack.APIError
		if errors.As(err, &apiErr) {
			log.Warnf("[Checkout] Processor rejected %s: %s", ref, apiErr.Message)
			return nil, &UpstreamInitiationError{
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Message,
				Temporary:  apiErr.IsTemporary(),
				Err:        err,
			}
		}
		log.Errorf("[Checkout] Processor unreachable for %s: %v", ref, err)
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	i.recordSession(ctx, &models.CheckoutSession{
		Reference:        ref.String(),
		UserID:           buyer.ID,
		CourseID:         course.ID,
		AmountMinor:      amount,
		Currency:         currency,
		Status:           models.CheckoutStatusInitiated,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
	})

	log.Infof("[Checkout] Initiated %s for user %d course %d amount=%d %s", ref, buyer.ID, course.ID, amount, currency)
	return &CheckoutResult{
		RedirectURL: resp.AuthorizationURL,
		Reference:   ref.String(),
		AmountMinor: amount,
		Currency:    currency,
	}, nil
}

// recordSession never fails the checkout; the processor already holds the
// authoritative transaction.
func (i *Initiator) recordSession(ctx context.Context, s *models.CheckoutSession) {
	if i.sessions == nil {
		return
	}
	if _, err := i.sessions.CreateIfNotExists(ctx, s); err != nil {
		log.Errorf("[Checkout] Failed to record session %s: %v", s.Reference, err)
	}
}

func (i *Initiator) callbackURL(reference string, courseID uint) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(i.cfg.CallbackBaseURL), "/")
	u, err := url.Parse(base + CallbackPath)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid callback base url %q", i.cfg.CallbackBaseURL)
	}
	q := u.Query()
	q.Set("reference", reference)
	q.Set("course_id", strconv.FormatUint(uint64(courseID), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// loadSecret maps settings failures onto ErrGatewayNotConfigured while
// keeping the cause inspectable with errors.As.
func loadSecret(ctx context.Context, secrets SecretSource, gateway string) (string, error) {
	secret, err := secrets.SecretForServerUse(ctx, gateway)
	if err == nil {
		return secret, nil
	}

	var decErr *security.DecryptionError
	if errors.Is(err, gatewaysettings.ErrNotConfigured) || errors.As(err, &decErr) {
		log.Errorf("[Payment] Gateway %s unavailable: %v", gateway, err)
		return "", fmt.Errorf("%w: %w", ErrGatewayNotConfigured, err)
	}
	return "", fmt.Errorf("load gateway secret: %w", err)
}
