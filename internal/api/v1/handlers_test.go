package apiv1

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CourseFox/app/controllers"
	"github.com/ManuelReschke/CourseFox/internal/pkg/poller"
	"github.com/ManuelReschke/CourseFox/internal/pkg/usercontext"
)

type recordingEnrollments struct {
	mu      sync.Mutex
	lookups [][2]uint
}

func (r *recordingEnrollments) Exists(_ context.Context, userID, courseID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, [2]uint{userID, courseID})
	return true, nil
}

func newAPIApp(enrollments poller.Checker) *fiber.App {
	pc := controllers.NewPaymentController(nil, nil, enrollments, nil, poller.Config{Interval: 10 * time.Millisecond, Timeout: 50 * time.Millisecond})
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		usercontext.SetUserContext(c, usercontext.UserContext{UserID: 7, IsLoggedIn: true})
		return c.Next()
	})
	RegisterHandlers(app.Group("/api/v1"), NewAPIServer(pc))
	return app
}

func TestAPIServerPassesBoundParameters(t *testing.T) {
	enrollments := &recordingEnrollments{}
	app := newAPIApp(enrollments)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/enrollments/10/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/payments/verify?reference=crs-12-7-1767225600000-0123456789abcdef&course_id=12", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "enrolled", body["status"])

	enrollments.mu.Lock()
	defer enrollments.mu.Unlock()
	require.NotEmpty(t, enrollments.lookups)
	assert.Equal(t, [2]uint{7, 10}, enrollments.lookups[0])
	assert.Equal(t, [2]uint{7, 12}, enrollments.lookups[len(enrollments.lookups)-1])
}

func TestAPIServerVerifyRejectsMismatchedCourse(t *testing.T) {
	app := newAPIApp(&recordingEnrollments{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/payments/verify?reference=crs-12-7-1767225600000-0123456789abcdef&course_id=13", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
