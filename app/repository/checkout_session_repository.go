package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/CourseFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type checkoutSessionRepository struct {
	db *gorm.DB
}

// NewCheckoutSessionRepository creates a checkout session repository backed by GORM
func NewCheckoutSessionRepository(db *gorm.DB) CheckoutSessionRepository {
	return &checkoutSessionRepository{db: db}
}

func (r *checkoutSessionRepository) CreateIfNotExists(ctx context.Context, s *models.CheckoutSession) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reference"}},
		DoNothing: true,
	}).Create(s)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *checkoutSessionRepository) GetByReference(ctx context.Context, reference string) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *checkoutSessionRepository) UpdateStatus(ctx context.Context, reference, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("reference = ? AND status = ?", reference, models.CheckoutStatusInitiated).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *checkoutSessionRepository) ListStale(ctx context.Context, createdBefore, createdAfter time.Time, limit int) ([]models.CheckoutSession, error) {
	if limit <= 0 {
		limit = 100
	}
	var sessions []models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ? AND created_at > ?", models.CheckoutStatusInitiated, createdBefore, createdAfter).
		Order("created_at ASC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *checkoutSessionRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
