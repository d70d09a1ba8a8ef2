package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinchng/storefront-backend/pkg/enums"
)

// StripeTransaction records a completed Stripe hosted-checkout session.
type StripeTransaction struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index:idx_stripe_txns_user"`
	OrderID         *uuid.UUID             `gorm:"column:order_id;type:uuid;uniqueIndex:uq_stripe_txns_order"`
	SessionID       string                 `gorm:"column:session_id;not null;uniqueIndex:uq_stripe_txns_session"`
	PaymentIntentID string                 `gorm:"column:payment_intent_id;not null"`
	CustomerEmail   *string                `gorm:"column:customer_email"`
	Amount          decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        string                 `gorm:"column:currency;not null;default:'sgd'"`
	Status          enums.PaymentTxnStatus `gorm:"column:status;type:payment_txn_status;not null;default:'pending'"`
	RefundStatus    *string                `gorm:"column:refund_status"`
	RefundID        *string                `gorm:"column:refund_id"`
	RawResponse     *string                `gorm:"column:raw_response;type:jsonb"`
	RefundResponse  *string                `gorm:"column:refund_response;type:jsonb"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
