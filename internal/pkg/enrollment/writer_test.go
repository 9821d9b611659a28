package enrollment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/database/testdb"
)

func countEnrollments(t *testing.T, w *Writer, userID, courseID uint) int64 {
	t.Helper()
	var n int64
	db := w.repo.(*gormRepository).db
	require.NoError(t, db.Model(&models.Enrollment{}).Where("user_id = ? AND course_id = ?", userID, courseID).Count(&n).Error)
	return n
}

func TestWriterEnrollSequential(t *testing.T) {
	w := NewWriterFromDB(testdb.Open(t))
	ctx := context.Background()

	first, created, err := w.Enroll(ctx, 10, 20)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)
	assert.Equal(t, 0, first.ProgressPercentage)
	assert.False(t, first.EnrolledAt.IsZero())

	for i := 0; i < 3; i++ {
		again, created, err := w.Enroll(ctx, 10, 20)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, again.ID)
	}

	assert.Equal(t, int64(1), countEnrollments(t, w, 10, 20))

	other, created, err := w.Enroll(ctx, 10, 21)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestWriterEnrollConcurrent(t *testing.T) {
	w := NewWriterFromDB(testdb.Open(t))
	ctx := context.Background()

	const callers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[uint]struct{}{}
		created int
		errs    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, c, err := w.Enroll(ctx, 5, 7)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[e.ID] = struct{}{}
			if c {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	assert.Equal(t, int64(1), countEnrollments(t, w, 5, 7))
}

func TestWriterExists(t *testing.T) {
	w := NewWriterFromDB(testdb.Open(t))
	ctx := context.Background()

	ok, err := w.Exists(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = w.Enroll(ctx, 1, 2)
	require.NoError(t, err)

	ok, err = w.Exists(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriterRejectsZeroIDs(t *testing.T) {
	w := NewWriter(&stubRepository{})
	_, _, err := w.Enroll(context.Background(), 0, 1)
	assert.Error(t, err)
	_, _, err = w.Enroll(context.Background(), 1, 0)
	assert.Error(t, err)
}

type stubRepository struct {
	insertErr error
	existing  *models.Enrollment
	findErr   error
}

func (s *stubRepository) InsertIfNotExists(context.Context, *models.Enrollment) (bool, error) {
	return false, s.insertErr
}

func (s *stubRepository) Find(context.Context, uint, uint) (*models.Enrollment, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.existing == nil {
		return nil, ErrNotFound
	}
	return s.existing, nil
}

func TestWriterNormalizesConflict(t *testing.T) {
	existing := &models.Enrollment{ID: 99, UserID: 1, CourseID: 2}
	w := NewWriter(&stubRepository{insertErr: ErrEnrollmentConflict, existing: existing})

	e, created, err := w.Enroll(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, uint(99), e.ID)
}

func TestWriterPropagatesStorageErrors(t *testing.T) {
	boom := errors.New("connection reset")
	w := NewWriter(&stubRepository{insertErr: boom})

	_, _, err := w.Enroll(context.Background(), 1, 2)
	assert.ErrorIs(t, err, boom)

	w = NewWriter(&stubRepository{findErr: boom})
	_, err = w.Exists(context.Background(), 1, 2)
	assert.ErrorIs(t, err, boom)
}
