package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kelvinchng/storefront-backend/pkg/enums"
)

// RefundRequest tracks one refund request per order. Method records which
// gateway originally settled the order so approval routes correctly.
type RefundRequest struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_refund_requests_order"`
	UserID       uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index:idx_refund_requests_user"`
	Method       enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Reason       *string             `gorm:"column:reason"`
	Status       enums.RefundStatus  `gorm:"column:status;type:refund_status;not null;default:'pending'"`
	AdminMessage *string             `gorm:"column:admin_message"`
	ResolvedAt   *time.Time          `gorm:"column:resolved_at"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
