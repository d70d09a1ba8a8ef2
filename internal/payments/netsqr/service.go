package netsqr

import (
	"context"
	"errors"
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
	pkgnetsqr "github.com/kelvinchng/storefront-backend/pkg/netsqr"
)

type gateway interface {
	RequestQR(ctx context.Context, amount decimal.Decimal) (*pkgnetsqr.QRResponse, error)
	QueryStatus(ctx context.Context, retrievalRef string, frontendTimeout bool) (*pkgnetsqr.QueryResponse, error)
}

// InitiateResult is returned to the client to render the QR and open the
// status stream.
type InitiateResult struct {
	IntentID     string          `json:"intent_id"`
	QRCodeBase64 string          `json:"qr_code"`
	RetrievalRef string          `json:"retrieval_ref"`
	Amount       decimal.Decimal `json:"amount"`
}

// Service drives the NETS QR flow: request a QR, track the pending row, and
// finalize into an order or a wallet top-up.
type Service struct {
	db        *gorm.DB
	gateway   gateway
	intents   *intent.Store
	payments  payments.Service
	ordersSvc orders.Service
	walletSvc wallet.Service
	logger    *logger.Logger
}

// NewService builds the NETS QR payment service.
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
		return nil, fmt.Errorf("nets gateway required")
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

// InitiatePurchase prices the cart, requests a QR for the total, and opens a
// pending transaction plus its expiring intent record.
func (s *Service) InitiatePurchase(ctx context.Context, userID uuid.UUID, isTest bool) (*InitiateResult, error) {
	priced, err := s.ordersSvc.PriceCartForCheckout(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.initiate(ctx, userID, priced.Total, &intent.Record{
		UserID: userID,
		Kind:   intent.KindPurchase,
		Method: enums.PaymentMethodNets,
		Amount: priced.Total,
		Cart:   priced,
		IsTest: isTest,
	})
}

// InitiateTopup requests a QR for a wallet top-up of the given amount.
func (s *Service) InitiateTopup(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*InitiateResult, error) {
	if amount.LessThan(s.walletSvc.MinTopup()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("minimum top-up is %s", s.walletSvc.MinTopup())).WithDetails(map[string]any{
			"minimum": s.walletSvc.MinTopup(),
		})
	}
	return s.initiate(ctx, userID, amount, &intent.Record{
		UserID: userID,
		Kind:   intent.KindWalletTopup,
		Method: enums.PaymentMethodNets,
		Amount: amount,
	})
}

func (s *Service) initiate(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, record *intent.Record) (*InitiateResult, error) {
	qr, err := s.gateway.RequestQR(ctx, amount)
	if err != nil {
		return nil, err
	}

	txn := models.NetsTransaction{
		ID:           uuid.New(),
		UserID:       userID,
		TxnID:        qr.RetrievalRef,
		RetrievalRef: qr.RetrievalRef,
		Amount:       amount.Round(2),
		Status:       enums.PaymentTxnStatusPending,
		ResponseCode: optional(qr.ResponseCode),
		TxnStatus:    qr.TxnStatus,
	}
	if qr.QRID != "" {
		qrID := qr.QRID
		txn.QRID = &qrID
	}
	if len(qr.Raw) > 0 {
		raw := string(qr.Raw)
		txn.RawResponse = &raw
	}
	if err := s.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, err
	}

	record.GatewayRef = qr.RetrievalRef
	if err := s.intents.Create(ctx, record); err != nil {
		return nil, err
	}

	if s.logger != nil {
		lctx := s.logger.WithGatewayRef(s.logger.WithUserID(ctx, userID.String()), qr.RetrievalRef)
		s.logger.Info(lctx, "nets qr issued")
	}
	return &InitiateResult{
		IntentID:     record.ID,
		QRCodeBase64: qr.QRCodeBase64,
		RetrievalRef: qr.RetrievalRef,
		Amount:       amount.Round(2),
	}, nil
}

// FinalizeResult reports what a successful finalize settled.
type FinalizeResult struct {
	Kind      intent.Kind               `json:"kind"`
	Order     *models.Order             `json:"order,omitempty"`
	WalletTxn *models.WalletTransaction `json:"wallet_transaction,omitempty"`
}

// FinalizeSuccess consumes the intent and settles it: a purchase materializes
// the order; a top-up credits the wallet. The transaction row must already be
// marked successful by the polling loop.
func (s *Service) FinalizeSuccess(ctx context.Context, userID uuid.UUID, intentID string) (*FinalizeResult, error) {
	record, err := s.intents.Consume(ctx, enums.PaymentMethodNets, intentID, userID)
	if err != nil {
		return nil, err
	}

	txn, err := s.findByRetrievalRef(ctx, record.GatewayRef)
	if err != nil {
		return nil, err
	}
	if txn.Status != enums.PaymentTxnStatusSuccess {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRejected, "payment has not been confirmed").WithDetails(map[string]any{
			"status": txn.Status,
		})
	}

	switch record.Kind {
	case intent.KindWalletTopup:
		entry, err := s.walletSvc.Credit(ctx, userID, record.Amount, wallet.Meta{
			Type:   enums.WalletTxnTypeTopup,
			Method: enums.PaymentMethodNets,
			Note:   "nets qr top-up " + record.GatewayRef,
		})
		if err != nil {
			return nil, err
		}
		return &FinalizeResult{Kind: intent.KindWalletTopup, WalletTxn: entry}, nil
	default:
		if record.Cart == nil {
			return nil, pkgerrors.New(pkgerrors.CodeOrderIntegrity, "pending payment has no cart snapshot")
		}
		order, err := s.payments.ConfirmAndCreateOrder(ctx, userID, *record.Cart, record.IsTest, payments.NetsConfirmation{TransactionID: txn.ID})
		if err != nil {
			return nil, err
		}
		return &FinalizeResult{Kind: intent.KindPurchase, Order: order}, nil
	}
}

// FinalizeFailure consumes the intent and marks the transaction failed when
// the polling loop has not already written a terminal status.
func (s *Service) FinalizeFailure(ctx context.Context, userID uuid.UUID, intentID, reason string) error {
	record, err := s.intents.Consume(ctx, enums.PaymentMethodNets, intentID, userID)
	if err != nil {
		return err
	}

	txn, err := s.findByRetrievalRef(ctx, record.GatewayRef)
	if err != nil {
		return err
	}
	if txn.Status.IsTerminal() {
		return nil
	}

	updates := map[string]any{"status": enums.PaymentTxnStatusFailed}
	if reason != "" {
		updates["error_message"] = reason
	}
	return s.db.WithContext(ctx).Model(&models.NetsTransaction{}).
		Where("id = ?", txn.ID).
		Updates(updates).Error
}

// TransactionByRetrievalRef exposes the pending row for the stream handler.
func (s *Service) TransactionByRetrievalRef(ctx context.Context, userID uuid.UUID, retrievalRef string) (*models.NetsTransaction, error) {
	txn, err := s.findByRetrievalRef(ctx, retrievalRef)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeStaleReference, "no matching pending payment")
	}
	return txn, nil
}

func (s *Service) findByRetrievalRef(ctx context.Context, retrievalRef string) (*models.NetsTransaction, error) {
	var txn models.NetsTransaction
	err := s.db.WithContext(ctx).First(&txn, "retrieval_ref = ?", retrievalRef).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeStaleReference, "no matching pending payment")
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
