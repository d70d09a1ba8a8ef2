package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/internal/wallet"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	"github.com/kelvinchng/storefront-backend/pkg/enums"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
	"github.com/kelvinchng/storefront-backend/pkg/paypal"
)

type paypalRefunder interface {
	RefundCapture(ctx context.Context, captureID string, amount decimal.Decimal) (*paypal.RefundResponse, error)
}

type stripeRefunder interface {
	RefundPaymentIntent(ctx context.Context, paymentIntentID string, amount decimal.Decimal) (string, error)
}

// Service handles the refund request/approval workflow. The refund method is
// never stored on the order; it is inferred by probing the gateway
// transaction tables in a fixed precedence order.
type Service interface {
	Request(ctx context.Context, userID, orderID uuid.UUID, reason string) (*models.RefundRequest, error)
	AdminApprove(ctx context.Context, orderID uuid.UUID) (*models.RefundRequest, error)
	AdminReject(ctx context.Context, orderID uuid.UUID, message string) (*models.RefundRequest, error)
	List(ctx context.Context) ([]models.RefundRequest, error)
}

type service struct {
	db        *gorm.DB
	walletSvc wallet.Service
	paypal    paypalRefunder
	stripe    stripeRefunder
	logger    *logger.Logger
}

// NewService builds the refund service. The gateway refunders may be nil when
// the gateway is not configured; approvals for that method then fail with a
// dependency error instead of silently falling back to the wallet.
func NewService(db *gorm.DB, walletSvc wallet.Service, pp paypalRefunder, st stripeRefunder, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	return &service{db: db, walletSvc: walletSvc, paypal: pp, stripe: st, logger: logg}, nil
}

// Request opens a pending refund request for an order owned by the caller.
// At most one request ever exists per order.
func (s *service) Request(ctx context.Context, userID, orderID uuid.UUID, reason string) (*models.RefundRequest, error) {
	var order models.Order
	err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	var existing int64
	err = s.db.WithContext(ctx).Model(&models.RefundRequest{}).
		Where("order_id = ?", orderID).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "refund already requested for this order")
	}

	method, err := s.probeMethod(ctx, orderID)
	if err != nil {
		return nil, err
	}

	request := models.RefundRequest{
		ID:      uuid.New(),
		OrderID: orderID,
		UserID:  userID,
		Method:  method,
		Status:  enums.RefundStatusPending,
	}
	if reason != "" {
		request.Reason = &reason
	}
	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		return nil, err
	}

	if s.logger != nil {
		lctx := s.logger.WithOrderID(s.logger.WithUserID(ctx, userID.String()), orderID.String())
		s.logger.Info(lctx, fmt.Sprintf("refund requested via %s", method))
	}
	return &request, nil
}

// probeMethod resolves the original payment method for an order. Precedence:
// paypal, stripe, nets, then wallet; the first table with a matching row wins.
func (s *service) probeMethod(ctx context.Context, orderID uuid.UUID) (enums.PaymentMethod, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.PaypalTransaction{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return enums.PaymentMethodPaypal, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.StripeTransaction{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return enums.PaymentMethodStripe, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.NetsTransaction{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return enums.PaymentMethodNets, nil
	}
	err := s.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("order_id = ? AND type = ?", orderID, enums.WalletTxnTypePayment).
		Count(&count).Error
	if err != nil {
		return "", err
	}
	if count > 0 {
		return enums.PaymentMethodWallet, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "no settled payment found for this order")
}

// AdminApprove settles a pending request against the original payment method.
// A second call on an already-resolved request is a no-op returning the
// resolved request.
func (s *service) AdminApprove(ctx context.Context, orderID uuid.UUID) (*models.RefundRequest, error) {
	request, err := s.findRequest(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if request.Status.IsResolved() {
		return request, nil
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}

	switch request.Method {
	case enums.PaymentMethodPaypal:
		err = s.refundPaypal(ctx, request, orderID)
	case enums.PaymentMethodStripe:
		err = s.refundStripe(ctx, request, orderID)
	case enums.PaymentMethodNets:
		err = s.refundNetsToWallet(ctx, request, &order)
	case enums.PaymentMethodWallet:
		err = s.refundWallet(ctx, request, &order)
	default:
		err = pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cannot refund method %s", request.Method))
	}
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		lctx := s.logger.WithOrderID(ctx, orderID.String())
		s.logger.Info(lctx, fmt.Sprintf("refund request resolved: %s", request.Status))
	}
	return request, nil
}

func (s *service) refundPaypal(ctx context.Context, request *models.RefundRequest, orderID uuid.UUID) error {
	if s.paypal == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "paypal gateway is not configured")
	}
	var txn models.PaypalTransaction
	if err := s.db.WithContext(ctx).First(&txn, "order_id = ?", orderID).Error; err != nil {
		return err
	}

	refund, err := s.paypal.RefundCapture(ctx, txn.CaptureID, txn.Amount)
	if err != nil {
		return s.rejectAfterGatewayFailure(ctx, request, &models.PaypalTransaction{}, txn.ID, err)
	}

	updates := map[string]any{
		"status":        enums.PaymentTxnStatusRefunded,
		"refund_status": refund.Status,
		"refund_id":     refund.ID,
	}
	if len(refund.Raw) > 0 {
		updates["refund_response"] = string(refund.Raw)
	}
	err = s.db.WithContext(ctx).Model(&models.PaypalTransaction{}).Where("id = ?", txn.ID).Updates(updates).Error
	if err != nil {
		return err
	}
	return s.resolve(ctx, request, enums.RefundStatusApproved, "")
}

func (s *service) refundStripe(ctx context.Context, request *models.RefundRequest, orderID uuid.UUID) error {
	if s.stripe == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe gateway is not configured")
	}
	var txn models.StripeTransaction
	if err := s.db.WithContext(ctx).First(&txn, "order_id = ?", orderID).Error; err != nil {
		return err
	}

	refundID, err := s.stripe.RefundPaymentIntent(ctx, txn.PaymentIntentID, txn.Amount)
	if err != nil {
		return s.rejectAfterGatewayFailure(ctx, request, &models.StripeTransaction{}, txn.ID, err)
	}

	refunded := string(enums.PaymentTxnStatusRefunded)
	err = s.db.WithContext(ctx).Model(&models.StripeTransaction{}).Where("id = ?", txn.ID).Updates(map[string]any{
		"status":        enums.PaymentTxnStatusRefunded,
		"refund_status": refunded,
		"refund_id":     refundID,
	}).Error
	if err != nil {
		return err
	}
	return s.resolve(ctx, request, enums.RefundStatusApproved, "")
}

func (s *service) refundNetsToWallet(ctx context.Context, request *models.RefundRequest, order *models.Order) error {
	var txn models.NetsTransaction
	if err := s.db.WithContext(ctx).First(&txn, "order_id = ?", order.ID).Error; err != nil {
		return err
	}

	if err := s.creditWallet(ctx, request, order, enums.PaymentMethodNets); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Model(&models.NetsTransaction{}).
		Where("id = ?", txn.ID).
		Update("status", enums.PaymentTxnStatusRefundedWallet).Error
	if err != nil {
		return err
	}
	return s.resolve(ctx, request, enums.RefundStatusApproved, "")
}

func (s *service) refundWallet(ctx context.Context, request *models.RefundRequest, order *models.Order) error {
	if err := s.creditWallet(ctx, request, order, enums.PaymentMethodWallet); err != nil {
		return err
	}
	return s.resolve(ctx, request, enums.RefundStatusApproved, "")
}

func (s *service) creditWallet(ctx context.Context, request *models.RefundRequest, order *models.Order, method enums.PaymentMethod) error {
	_, err := s.walletSvc.Credit(ctx, order.UserID, order.Total, wallet.Meta{
		OrderID: &order.ID,
		Type:    enums.WalletTxnTypeRefund,
		Method:  method,
		Note:    "refund for order " + order.ID.String(),
	})
	return err
}

// rejectAfterGatewayFailure records the declined refund on the payment row
// and resolves the request as rejected. The gateway error itself is not
// returned; the rejection carries it as the admin message.
func (s *service) rejectAfterGatewayFailure(ctx context.Context, request *models.RefundRequest, model any, txnID uuid.UUID, gatewayErr error) error {
	failed := "failed"
	updateErr := s.db.WithContext(ctx).Model(model).Where("id = ?", txnID).
		Update("refund_status", failed).Error
	if updateErr != nil {
		return updateErr
	}
	if s.logger != nil {
		s.logger.Error(s.logger.WithOrderID(ctx, request.OrderID.String()), "gateway refund declined", gatewayErr)
	}
	return s.resolve(ctx, request, enums.RefundStatusRejected, "gateway refund failed: "+gatewayErr.Error())
}

// AdminReject resolves a pending request with an audit message. Already
// resolved requests are returned unchanged.
func (s *service) AdminReject(ctx context.Context, orderID uuid.UUID, message string) (*models.RefundRequest, error) {
	request, err := s.findRequest(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if request.Status.IsResolved() {
		return request, nil
	}
	if err := s.resolve(ctx, request, enums.RefundStatusRejected, message); err != nil {
		return nil, err
	}
	return request, nil
}

// List returns every refund request, newest first.
func (s *service) List(ctx context.Context) ([]models.RefundRequest, error) {
	var requests []models.RefundRequest
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&requests).Error
	return requests, err
}

func (s *service) findRequest(ctx context.Context, orderID uuid.UUID) (*models.RefundRequest, error) {
	var request models.RefundRequest
	err := s.db.WithContext(ctx).First(&request, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no refund request for this order")
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (s *service) resolve(ctx context.Context, request *models.RefundRequest, status enums.RefundStatus, message string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":      status,
		"resolved_at": now,
	}
	if message != "" {
		updates["admin_message"] = message
	}
	err := s.db.WithContext(ctx).Model(&models.RefundRequest{}).
		Where("id = ? AND status = ?", request.ID, enums.RefundStatusPending).
		Updates(updates).Error
	if err != nil {
		return err
	}
	request.Status = status
	request.ResolvedAt = &now
	if message != "" {
		request.AdminMessage = &message
	}
	return nil
}
