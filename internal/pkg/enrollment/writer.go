package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/app/models"
)

var (
	ErrNotFound = errors.New("enrollment: not found")
	// ErrEnrollmentConflict marks a lost insert race. Writer.Enroll never
	// returns it; it resolves to the existing row.
	ErrEnrollmentConflict = errors.New("enrollment: already exists")
)

// Writer is the only code path that creates enrollments.
type Writer struct {
	repo Repository
	now  func() time.Time
}

func NewWriter(repo Repository) *Writer {
	return &Writer{repo: repo, now: time.Now}
}

func NewWriterFromDB(db *gorm.DB) *Writer {
	return NewWriter(NewRepository(db))
}

// Enroll grants access to a course exactly once. It returns the stored row
// and whether this call created it. Concurrent calls for the same pair all
// succeed with the same row.
func (w *Writer) Enroll(ctx context.Context, userID, courseID uint) (*models.Enrollment, bool, error) {
	if userID == 0 || courseID == 0 {
		return nil, false, fmt.Errorf("enroll: invalid ids user=%d course=%d", userID, courseID)
	}

	e := &models.Enrollment{
		UserID:             userID,
		CourseID:           courseID,
		EnrolledAt:         w.now().UTC(),
		ProgressPercentage: 0,
	}

	created, err := w.repo.InsertIfNotExists(ctx, e)
	if err != nil && !errors.Is(err, ErrEnrollmentConflict) {
		return nil, false, fmt.Errorf("enroll user %d in course %d: %w", userID, courseID, err)
	}
	if created {
		log.Infof("[Enrollment] User %d enrolled in course %d", userID, courseID)
		return e, true, nil
	}

	existing, err := w.repo.Find(ctx, userID, courseID)
	if err != nil {
		return nil, false, fmt.Errorf("load existing enrollment user %d course %d: %w", userID, courseID, err)
	}
	return existing, false, nil
}

// Exists is a point lookup on (user_id, course_id).
func (w *Writer) Exists(ctx context.Context, userID, courseID uint) (bool, error) {
	_, err := w.repo.Find(ctx, userID, courseID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}
