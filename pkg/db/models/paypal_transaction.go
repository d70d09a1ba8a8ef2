package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinchng/storefront-backend/pkg/enums"
)

// PaypalTransaction records a captured PayPal checkout. CaptureID is what
// refunds are issued against.
type PaypalTransaction struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index:idx_paypal_txns_user"`
	OrderID        *uuid.UUID             `gorm:"column:order_id;type:uuid;uniqueIndex:uq_paypal_txns_order"`
	PaypalOrderID  string                 `gorm:"column:paypal_order_id;not null;uniqueIndex:uq_paypal_txns_remote_order"`
	CaptureID      string                 `gorm:"column:capture_id;not null"`
	PayerID        *string                `gorm:"column:payer_id"`
	PayerEmail     *string                `gorm:"column:payer_email"`
	Amount         decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency       string                 `gorm:"column:currency;not null;default:'SGD'"`
	Status         enums.PaymentTxnStatus `gorm:"column:status;type:payment_txn_status;not null;default:'pending'"`
	RefundStatus   *string                `gorm:"column:refund_status"`
	RefundID       *string                `gorm:"column:refund_id"`
	RawResponse    *string                `gorm:"column:raw_response;type:jsonb"`
	RefundResponse *string                `gorm:"column:refund_response;type:jsonb"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
