package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the immutable record materialized from a cart snapshot once
// payment is confirmed. IsTest marks admin walkthrough purchases so they can
// be filtered out of reporting.
type Order struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index:idx_orders_user"`
	Total     decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	IsTest    bool            `gorm:"column:is_test;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem snapshots one priced cart line at order-creation time. Prices and
// the product name are copied so later catalog edits do not rewrite order
// history.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index:idx_order_items_order"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName  string          `gorm:"column:product_name;not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	BasePrice    decimal.Decimal `gorm:"column:base_price;type:numeric(12,2);not null"`
	DiscountRate decimal.Decimal `gorm:"column:discount_rate;type:numeric(5,2);not null;default:0"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price_after_discount;type:numeric(12,2);not null"`
	Subtotal     decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
