package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const DefaultCourseCurrency = "NGN"

// Course is a purchasable item. Price is kept in the display unit
// (e.g. 15000.00 NGN) and converted to minor units only at checkout.
type Course struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Title       string          `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=3,max=255"`
	Slug        string          `gorm:"type:varchar(191);uniqueIndex;not null" json:"slug" validate:"required,max=191"`
	Price       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"price"`
	Currency    string          `gorm:"type:varchar(3);not null;default:'NGN'" json:"currency" validate:"required,len=3"`
	IsPublished bool            `gorm:"default:false;index" json:"is_published"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}
