package paypalgw

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/internal/orders"
	"github.com/kelvinchng/storefront-backend/internal/payments"
	"github.com/kelvinchng/storefront-backend/internal/payments/intent"
	"github.com/kelvinchng/storefront-backend/internal/wallet"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	"github.com/kelvinchng/storefront-backend/pkg/enums"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
	"github.com/kelvinchng/storefront-backend/pkg/paypal"
)

type gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal) (*paypal.OrderResponse, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.CaptureResponse, error)
	Currency() string
}

// CreateResult hands the remote order id back to the client so the approval
// flow can run in the PayPal SDK.
type CreateResult struct {
	PaypalOrderID string          `json:"paypal_order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// CaptureResult reports what a captured payment settled.
type CaptureResult struct {
	Kind      intent.Kind               `json:"kind"`
	Order     *models.Order             `json:"order,omitempty"`
	WalletTxn *models.WalletTransaction `json:"wallet_transaction,omitempty"`
}

// Service drives the PayPal checkout flow: create a remote order with an
// expiring intent record, then capture it and settle the result.
type Service struct {
	db        *gorm.DB
	gateway   gateway
	intents   *intent.Store
	payments  payments.Service
	ordersSvc orders.Service
	walletSvc wallet.Service
	logger    *logger.Logger
}

// NewService builds the PayPal payment service.
func NewService(
	db *gorm.DB,
	gw gateway,
	intents *intent.Store,
	paymentsSvc payments.Service,
	ordersSvc orders.Service,
	walletSvc wallet.Service,
	logg *logger.Logger,
) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	if gw == nil {
		return nil, fmt.Errorf("paypal gateway required")
	}
	if intents == nil {
		return nil, fmt.Errorf("intent store required")
	}
	if paymentsSvc == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	return &Service{
		db:        db,
		gateway:   gw,
		intents:   intents,
		payments:  paymentsSvc,
		ordersSvc: ordersSvc,
		walletSvc: walletSvc,
		logger:    logg,
	}, nil
}

// CreatePurchaseOrder prices the cart and opens a remote PayPal order for the
// total. The intent record is keyed by the remote order id so Capture can
// resolve it from the id the client sends back.
func (s *Service) CreatePurchaseOrder(ctx context.Context, userID uuid.UUID, isTest bool) (*CreateResult, error) {
	priced, err := s.ordersSvc.PriceCartForCheckout(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, userID, priced.Total, &intent.Record{
		UserID: userID,
		Kind:   intent.KindPurchase,
		Method: enums.PaymentMethodPaypal,
		Amount: priced.Total,
		Cart:   priced,
		IsTest: isTest,
	})
}

// CreateTopupOrder opens a remote PayPal order for a wallet top-up.
func (s *Service) CreateTopupOrder(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*CreateResult, error) {
	if amount.LessThan(s.walletSvc.MinTopup()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("minimum top-up is %s", s.walletSvc.MinTopup())).WithDetails(map[string]any{
			"minimum": s.walletSvc.MinTopup(),
		})
	}
	return s.create(ctx, userID, amount, &intent.Record{
		UserID: userID,
		Kind:   intent.KindWalletTopup,
		Method: enums.PaymentMethodPaypal,
		Amount: amount,
	})
}

func (s *Service) create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, record *intent.Record) (*CreateResult, error) {
	remote, err := s.gateway.CreateOrder(ctx, amount)
	if err != nil {
		return nil, err
	}

	record.ID = remote.ID
	record.GatewayRef = remote.ID
	if err := s.intents.Create(ctx, record); err != nil {
		return nil, err
	}

	if s.logger != nil {
		lctx := s.logger.WithGatewayRef(s.logger.WithUserID(ctx, userID.String()), remote.ID)
		s.logger.Info(lctx, "paypal order created")
	}
	return &CreateResult{
		PaypalOrderID: remote.ID,
		Amount:        amount.Round(2),
		Currency:      s.gateway.Currency(),
	}, nil
}

// Capture consumes the intent, captures the remote order, records the
// transaction, and settles it into an order or a wallet credit.
func (s *Service) Capture(ctx context.Context, userID uuid.UUID, paypalOrderID string) (*CaptureResult, error) {
	record, err := s.intents.Consume(ctx, enums.PaymentMethodPaypal, paypalOrderID, userID)
	if err != nil {
		return nil, err
	}

	capture, err := s.gateway.CaptureOrder(ctx, record.GatewayRef)
	if err != nil {
		return nil, err
	}
	if !capture.Completed() {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRejected, "paypal capture was not completed").WithDetails(map[string]any{
			"status": capture.Status,
		})
	}

	amount := record.Amount
	if !capture.Amount.IsZero() {
		amount = capture.Amount
	}
	txn := models.PaypalTransaction{
		ID:            uuid.New(),
		UserID:        userID,
		PaypalOrderID: capture.OrderID,
		CaptureID:     capture.CaptureID,
		PayerID:       optional(capture.PayerID),
		PayerEmail:    optional(capture.PayerEmail),
		Amount:        amount.Round(2),
		Currency:      s.gateway.Currency(),
		Status:        enums.PaymentTxnStatusSuccess,
	}
	if len(capture.Raw) > 0 {
		raw := string(capture.Raw)
		txn.RawResponse = &raw
	}
	if err := s.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, err
	}

	if s.logger != nil {
		lctx := s.logger.WithGatewayRef(s.logger.WithUserID(ctx, userID.String()), capture.OrderID)
		s.logger.Info(lctx, "paypal capture completed")
	}

	switch record.Kind {
	case intent.KindWalletTopup:
		entry, err := s.walletSvc.Credit(ctx, userID, record.Amount, wallet.Meta{
			Type:   enums.WalletTxnTypeTopup,
			Method: enums.PaymentMethodPaypal,
			Note:   "paypal top-up " + capture.OrderID,
		})
		if err != nil {
			return nil, err
		}
		return &CaptureResult{Kind: intent.KindWalletTopup, WalletTxn: entry}, nil
	default:
		if record.Cart == nil {
			return nil, pkgerrors.New(pkgerrors.CodeOrderIntegrity, "pending payment has no cart snapshot")
		}
		order, err := s.payments.ConfirmAndCreateOrder(ctx, userID, *record.Cart, record.IsTest, payments.PaypalConfirmation{TransactionID: txn.ID})
		if err != nil {
			return nil, err
		}
		return &CaptureResult{Kind: intent.KindPurchase, Order: order}, nil
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
