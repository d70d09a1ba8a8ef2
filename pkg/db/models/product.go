package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalog listing. AvailableQty is the live reservable
// stock; InitialQty is the baseline it can be reset to.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string          `gorm:"column:name;not null"`
	Description  *string         `gorm:"column:description"`
	ImageURL     *string         `gorm:"column:image_url"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountRate decimal.Decimal `gorm:"column:discount_rate;type:numeric(5,2);not null;default:0"`
	AvailableQty int             `gorm:"column:available_qty;not null;default:0"`
	InitialQty   int             `gorm:"column:initial_qty;not null;default:0"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// DiscountedPrice returns the unit price after the catalog discount,
// rounded to two decimal places.
func (p Product) DiscountedPrice() decimal.Decimal {
	if p.DiscountRate.IsZero() {
		return p.Price.Round(2)
	}
	factor := decimal.NewFromInt(100).Sub(p.DiscountRate).Div(decimal.NewFromInt(100))
	return p.Price.Mul(factor).Round(2)
}
