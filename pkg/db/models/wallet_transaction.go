package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinchng/storefront-backend/pkg/enums"
)

// WalletTransaction is one append-only wallet ledger entry. Rows are never
// updated except to back-attach OrderID once the order exists.
type WalletTransaction struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index:idx_wallet_txns_user"`
	OrderID   *uuid.UUID            `gorm:"column:order_id;type:uuid;index:idx_wallet_txns_order"`
	Type      enums.WalletTxnType   `gorm:"column:type;type:wallet_txn_type;not null"`
	Method    enums.PaymentMethod   `gorm:"column:method;type:payment_method;not null;default:'wallet'"`
	Amount    decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Status    enums.WalletTxnStatus `gorm:"column:status;type:wallet_txn_status;not null"`
	Note      *string               `gorm:"column:note"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}
