package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/session"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/app/models"
	sess "github.com/ManuelReschke/CourseFox/internal/pkg/session"
	"github.com/ManuelReschke/CourseFox/internal/pkg/usercontext"
)

// UserLookup is satisfied by repository.UserRepository.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// UserContextMiddleware loads the principal that the login flow stored in
// the session. Requests without a session continue as anonymous. Email and
// role are read from the database once and then cached in the session.
func UserContextMiddleware(store *session.Store, users UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := store.Get(c)
		if err != nil {
			log.Warnf("[Session] Failed to load session: %v", err)
			usercontext.SetUserContext(c, usercontext.UserContext{})
			return c.Next()
		}

		userID, ok := sessionUint(s.Get(usercontext.KeyUserID))
		if !ok {
			usercontext.SetUserContext(c, usercontext.UserContext{})
			return c.Next()
		}

		email := sess.GetSessionString(s, usercontext.KeyEmail)
		isAdmin, _ := s.Get(usercontext.KeyIsAdmin).(bool)
		if email == "" && users != nil {
			user, err := users.GetByID(c.UserContext(), userID)
			if err != nil || !user.IsActive() {
				if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					log.Errorf("[Session] Failed to load user %d: %v", userID, err)
				}
				usercontext.SetUserContext(c, usercontext.UserContext{})
				return c.Next()
			}
			email = user.Email
			isAdmin = user.IsAdmin()
			s.Set(usercontext.KeyEmail, email)
			s.Set(usercontext.KeyIsAdmin, isAdmin)
			if err := s.Save(); err != nil {
				log.Warnf("[Session] Failed to cache user %d: %v", userID, err)
			}
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     userID,
			Username:   sess.GetSessionString(s, usercontext.KeyUsername),
			Email:      email,
			IsLoggedIn: true,
			IsAdmin:    isAdmin,
		})
		return c.Next()
	}
}

// Session values come back as whatever numeric type the storage codec
// produced.
func sessionUint(v interface{}) (uint, bool) {
	switch id := v.(type) {
	case uint:
		return id, id > 0
	case uint64:
		return uint(id), id > 0
	case int:
		return uint(id), id > 0
	case int64:
		return uint(id), id > 0
	case float64:
		return uint(id), id > 0
	default:
		return 0, false
	}
}
