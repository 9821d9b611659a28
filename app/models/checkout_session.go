package models

import "time"

const (
	CheckoutStatusInitiated = "initiated"
	CheckoutStatusEnrolled  = "enrolled"
	CheckoutStatusFailed    = "failed"
)

// CheckoutSession records a checkout attempt after the processor accepted it.
// Rows are never required for correctness: the reference itself carries the
// course and buyer ids. They let the reconciliation sweep find attempts
// whose webhook never arrived.
type CheckoutSession struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Reference        string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"reference"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	CourseID         uint      `gorm:"not null;index" json:"course_id"`
	AmountMinor      int64     `gorm:"not null" json:"amount_minor"`
	Currency         string    `gorm:"type:varchar(3);not null" json:"currency"`
	Status           string    `gorm:"type:varchar(20);not null;default:'initiated';index:idx_checkout_sessions_status_created,priority:1" json:"status"`
	AuthorizationURL string    `gorm:"type:varchar(500)" json:"authorization_url"`
	AccessCode       string    `gorm:"type:varchar(100)" json:"-"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index:idx_checkout_sessions_status_created,priority:2" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
