package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/CourseFox/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the read access the payment flow needs on users
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// CourseRepository defines the interface for course lookups
type CourseRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Course, error)
}

// CheckoutSessionRepository persists accepted checkout attempts
type CheckoutSessionRepository interface {
	// CreateIfNotExists ignores a second insert for the same reference.
	CreateIfNotExists(ctx context.Context, s *models.CheckoutSession) (bool, error)
	GetByReference(ctx context.Context, reference string) (*models.CheckoutSession, error)
	// UpdateStatus only moves sessions that are still initiated.
	UpdateStatus(ctx context.Context, reference, status string) error
	ListStale(ctx context.Context, createdBefore, createdAfter time.Time, limit int) ([]models.CheckoutSession, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User            UserRepository
	Course          CourseRepository
	CheckoutSession CheckoutSessionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:            NewUserRepository(db),
		Course:          NewCourseRepository(db),
		CheckoutSession: NewCheckoutSessionRepository(db),
	}
}
