package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinchng/storefront-backend/pkg/enums"
)

// User represents the canonical identity entity. WalletBalance is a cached
// running total of the user's completed wallet ledger entries.
type User struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email         string          `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash  string          `gorm:"column:password_hash;not null"`
	Name          string          `gorm:"column:name;not null"`
	Phone         *string         `gorm:"column:phone"`
	Role          enums.UserRole  `gorm:"column:role;type:user_role;not null;default:'customer'"`
	WalletBalance decimal.Decimal `gorm:"column:wallet_balance;type:numeric(12,2);not null;default:0"`
	WalletPinHash *string         `gorm:"column:wallet_pin_hash"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	LastLoginAt   *time.Time      `gorm:"column:last_login_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
