package models

import "time"

const PaymentGatewayPaystack = "paystack"

// PaymentGatewaySetting holds processor credentials. SecretKeyEnc is the
// versioned AES-GCM blob produced by security.SecretCipher and is never
// serialized to clients.
type PaymentGatewaySetting struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"name"`
	PublicKey    string    `gorm:"type:varchar(255);not null;default:''" json:"public_key"`
	SecretKeyEnc string    `gorm:"type:text" json:"-"`
	IsActive     bool      `gorm:"default:false;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
