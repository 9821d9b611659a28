package controllers

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseFox/internal/pkg/gatewaysettings"
	"github.com/ManuelReschke/CourseFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CourseFox/internal/pkg/security"
	"github.com/ManuelReschke/CourseFox/internal/pkg/usercontext"
)

// GatewaySettings is satisfied by gatewaysettings.Store.
type GatewaySettings interface {
	Get(ctx context.Context, actor gatewaysettings.Actor, name string) (*gatewaysettings.View, error)
	Upsert(ctx context.Context, actor gatewaysettings.Actor, name string, in gatewaysettings.UpsertInput) (*gatewaysettings.View, error)
}

// SessionStats is satisfied by repository.CheckoutSessionRepository.
type SessionStats interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// JobStats is satisfied by jobqueue.Queue.
type JobStats interface {
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
}

// CounterStats is satisfied by counter.Counters.
type CounterStats interface {
	Snapshot(ctx context.Context) (map[string]int64, error)
	CourseSales(ctx context.Context) (map[uint]int64, error)
}

// AdminPaymentController exposes gateway settings and pipeline statistics
// to administrators.
type AdminPaymentController struct {
	settings GatewaySettings
	sessions SessionStats
	jobs     JobStats
	counters CounterStats
}

func NewAdminPaymentController(settings GatewaySettings, sessions SessionStats, jobs JobStats, counters CounterStats) *AdminPaymentController {
	return &AdminPaymentController{settings: settings, sessions: sessions, jobs: jobs, counters: counters}
}

func actorFrom(c *fiber.Ctx) gatewaysettings.Actor {
	u := usercontext.GetUserContext(c)
	return gatewaysettings.Actor{UserID: u.UserID, IsAdmin: u.IsAdmin}
}

// HandleGetGateway returns the masked settings for :name.
func (ac *AdminPaymentController) HandleGetGateway(c *fiber.Ctx) error {
	view, err := ac.settings.Get(c.UserContext(), actorFrom(c), c.Params("name"))
	if err != nil {
		return settingsError(c, err)
	}
	return c.JSON(view)
}

// HandleUpsertGateway creates or updates the settings for :name.
func (ac *AdminPaymentController) HandleUpsertGateway(c *fiber.Ctx) error {
	var in gatewaysettings.UpsertInput
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	view, err := ac.settings.Upsert(c.UserContext(), actorFrom(c), c.Params("name"), in)
	if err != nil {
		return settingsError(c, err)
	}
	log.Infof("[Admin] Gateway %s updated by user %d", view.Name, usercontext.GetUserID(c))
	return c.JSON(view)
}

func settingsError(c *fiber.Ctx, err error) error {
	var vErrs validator.ValidationErrors
	var decErr *security.DecryptionError
	switch {
	case errors.Is(err, gatewaysettings.ErrForbidden):
		return jsonError(c, fiber.StatusForbidden, "forbidden", "admin privileges required")
	case errors.Is(err, gatewaysettings.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, "not_found", "gateway not found")
	case errors.Is(err, gatewaysettings.ErrSecretRequired):
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "secret_key is required")
	case errors.As(err, &vErrs):
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", vErrs.Error())
	case errors.As(err, &decErr):
		log.Errorf("[Admin] Stored gateway secret unreadable: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "secret_unreadable", "stored secret cannot be decrypted, re-enter it")
	default:
		log.Errorf("[Admin] Gateway settings error: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "settings operation failed")
	}
}

// HandlePaymentStats returns checkout session counts, queue stats,
// pipeline counters and enrollments sold per course.
func (ac *AdminPaymentController) HandlePaymentStats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	out := fiber.Map{}

	sessions, err := ac.sessions.CountByStatus(ctx)
	if err != nil {
		log.Errorf("[Admin] Failed to count checkout sessions: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "stats unavailable")
	}
	out["checkout_sessions"] = sessions

	if ac.jobs != nil {
		stats, err := ac.jobs.GetJobStats(ctx)
		if err != nil {
			log.Warnf("[Admin] Failed to read job stats: %v", err)
		} else {
			size, _ := ac.jobs.GetQueueSize(ctx)
			out["jobs"] = fiber.Map{"stats": stats, "pending": size}
		}
	}
	if ac.counters != nil {
		snap, err := ac.counters.Snapshot(ctx)
		if err != nil {
			log.Warnf("[Admin] Failed to read counters: %v", err)
		} else {
			out["counters"] = snap
		}
		sales, err := ac.counters.CourseSales(ctx)
		if err != nil {
			log.Warnf("[Admin] Failed to read course sales: %v", err)
		} else {
			out["course_sales"] = sales
		}
	}
	return c.JSON(out)
}
