package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelvinchng/storefront-backend/pkg/enums"
)

// NetsTransaction tracks one QR push-payment attempt. RetrievalRef is the
// gateway's correlation id used by both the polling loop and the success
// redirect; OrderID is attached after the order is materialized.
type NetsTransaction struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index:idx_nets_txns_user"`
	OrderID       *uuid.UUID             `gorm:"column:order_id;type:uuid;uniqueIndex:uq_nets_txns_order"`
	TxnID         string                 `gorm:"column:txn_id;not null"`
	RetrievalRef  string                 `gorm:"column:retrieval_ref;not null;uniqueIndex:uq_nets_txns_retrieval_ref"`
	QRID          *string                `gorm:"column:qr_id"`
	Amount        decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Status        enums.PaymentTxnStatus `gorm:"column:status;type:payment_txn_status;not null;default:'pending'"`
	ResponseCode  *string                `gorm:"column:response_code"`
	NetworkStatus *int                   `gorm:"column:network_status"`
	TxnStatus     *int                   `gorm:"column:txn_status"`
	ErrorMessage  *string                `gorm:"column:error_message"`
	RawResponse   *string                `gorm:"column:raw_response;type:jsonb"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
