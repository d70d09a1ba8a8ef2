package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinchng/storefront-backend/pkg/db/models"
)

// PricedItem is one checkout line priced against the current catalog.
type PricedItem struct {
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	BasePrice    decimal.Decimal `json:"base_price"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	UnitPrice    decimal.Decimal `json:"unit_price_after_discount"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// PricedCart is the checkout snapshot an order is materialized from.
type PricedCart struct {
	Items []PricedItem    `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// AdminOrder couples an order with the purchasing user for admin listings
// and the CSV export.
type AdminOrder struct {
	Order     models.Order `json:"order"`
	UserName  string       `json:"user_name"`
	UserEmail string       `json:"user_email"`
}

// CreatedAt is a convenience for export formatting.
func (a AdminOrder) CreatedAt() time.Time {
	return a.Order.CreatedAt
}
