package enrollment

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/CourseFox/app/models"
)

// Repository provides DB operations used by the enrollment writer.
type Repository interface {
	// InsertIfNotExists returns created=false when a row for the same
	// (user_id, course_id) already exists.
	InsertIfNotExists(ctx context.Context, e *models.Enrollment) (bool, error)
	Find(ctx context.Context, userID, courseID uint) (*models.Enrollment, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an enrollment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) InsertIfNotExists(ctx context.Context, e *models.Enrollment) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "course_id"},
		},
		DoNothing: true,
	}).Create(e)
	if tx.Error != nil {
		if isDuplicateKey(tx.Error) {
			return false, ErrEnrollmentConflict
		}
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) Find(ctx context.Context, userID, courseID uint) (*models.Enrollment, error) {
	var e models.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// isDuplicateKey recognizes unique violations from every supported driver.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}
