package gatewaysettings

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/CourseFox/app/models"
)

// Repository provides DB operations used by the settings store.
type Repository interface {
	FindByName(ctx context.Context, name string) (*models.PaymentGatewaySetting, error)
	// Upsert writes the row keyed by name. The stored secret column is only
	// touched when updateSecret is true.
	Upsert(ctx context.Context, setting *models.PaymentGatewaySetting, updateSecret bool) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a settings repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindByName(ctx context.Context, name string) (*models.PaymentGatewaySetting, error) {
	var s models.PaymentGatewaySetting
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *gormRepository) Upsert(ctx context.Context, setting *models.PaymentGatewaySetting, updateSecret bool) error {
	columns := []string{"public_key", "is_active", "updated_at"}
	if updateSecret {
		columns = append(columns, "secret_key_enc")
	}

	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(setting).Error; err != nil {
		return err
	}

	return db.Where("name = ?", setting.Name).First(setting).Error
}
