package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/internal/cart"
	"github.com/kelvinchng/storefront-backend/internal/orders"
	"github.com/kelvinchng/storefront-backend/internal/wallet"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	"github.com/kelvinchng/storefront-backend/pkg/enums"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service materializes orders from confirmed payments. Every gateway shares
// this one code path; the Confirmation variant only decides which pending
// transaction row the order is attached to.
type Service interface {
	ConfirmAndCreateOrder(ctx context.Context, userID uuid.UUID, priced orders.PricedCart, isTest bool, conf Confirmation) (*models.Order, error)
	PayWithWallet(ctx context.Context, input WalletPaymentInput) (*models.Order, error)
}

// WalletPaymentInput drives the synchronous wallet checkout.
type WalletPaymentInput struct {
	UserID uuid.UUID
	PIN    string
	IsTest bool
}

type service struct {
	tx         txRunner
	ordersRepo orders.Repository
	ordersSvc  orders.Service
	walletSvc  wallet.Service
	logger     *logger.Logger
}

// NewService builds the payment orchestration service.
func NewService(tx txRunner, ordersRepo orders.Repository, ordersSvc orders.Service, walletSvc wallet.Service, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	return &service{tx: tx, ordersRepo: ordersRepo, ordersSvc: ordersSvc, walletSvc: walletSvc, logger: logg}, nil
}

// ConfirmAndCreateOrder runs the shared post-settlement sequence in one
// transaction: materialize the order from the priced snapshot, attach the
// gateway's transaction row, and clear the cart. Stock is not touched here;
// the cart mutations already consumed it.
func (s *service) ConfirmAndCreateOrder(ctx context.Context, userID uuid.UUID, priced orders.PricedCart, isTest bool, conf Confirmation) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if conf == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment confirmation required")
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := orders.Materialize(ctx, s.ordersRepo.WithTx(tx), userID, priced, isTest)
		if err != nil {
			return err
		}
		if err := attachTransaction(ctx, tx, order.ID, conf); err != nil {
			return err
		}
		if err := cart.ClearItems(ctx, tx, userID); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		lctx := s.logger.WithOrderID(ctx, created.ID.String())
		lctx = s.logger.WithUserID(lctx, userID.String())
		s.logger.Info(lctx, fmt.Sprintf("order created via %s", conf.paymentMethod()))
	}
	return created, nil
}

// PayWithWallet prices the cart, debits the wallet (PIN-gated above the
// threshold), and materializes the order. A failure after the debit credits
// the funds back before surfacing the error.
func (s *service) PayWithWallet(ctx context.Context, input WalletPaymentInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	priced, err := s.ordersSvc.PriceCartForCheckout(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	if s.walletSvc.RequiresPIN(priced.Total) {
		if err := s.walletSvc.VerifyPIN(ctx, input.UserID, input.PIN); err != nil {
			return nil, err
		}
	}

	debit, err := s.walletSvc.Debit(ctx, input.UserID, priced.Total, wallet.Meta{
		Type:   enums.WalletTxnTypePayment,
		Method: enums.PaymentMethodWallet,
		Note:   "order payment",
	})
	if err != nil {
		return nil, err
	}

	order, err := s.ConfirmAndCreateOrder(ctx, input.UserID, *priced, input.IsTest, WalletConfirmation{WalletTxnID: debit.ID})
	if err != nil {
		// funds already left the wallet; put them back before surfacing
		_, creditErr := s.walletSvc.Credit(ctx, input.UserID, priced.Total, wallet.Meta{
			Type:   enums.WalletTxnTypeRefund,
			Method: enums.PaymentMethodWallet,
			Note:   "compensating credit: order creation failed",
		})
		if creditErr != nil {
			if s.logger != nil {
				lctx := s.logger.WithUserID(ctx, input.UserID.String())
				s.logger.Error(lctx, "compensating wallet credit failed, manual reconciliation required", creditErr)
			}
			return nil, multierr.Append(err, creditErr)
		}
		return nil, err
	}
	return order, nil
}

func attachTransaction(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, conf Confirmation) error {
	switch c := conf.(type) {
	case NetsConfirmation:
		return attachRow(ctx, tx, &models.NetsTransaction{}, c.TransactionID, orderID)
	case PaypalConfirmation:
		return attachRow(ctx, tx, &models.PaypalTransaction{}, c.TransactionID, orderID)
	case StripeConfirmation:
		return attachRow(ctx, tx, &models.StripeTransaction{}, c.TransactionID, orderID)
	case WalletConfirmation:
		return attachRow(ctx, tx, &models.WalletTransaction{}, c.WalletTxnID, orderID)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment confirmation")
	}
}

func attachRow(ctx context.Context, tx *gorm.DB, model any, txnID, orderID uuid.UUID) error {
	if txnID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	result := tx.WithContext(ctx).Model(model).
		Where("id = ? AND order_id IS NULL", txnID).
		UpdateColumn("order_id", orderID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStaleReference, "payment transaction not found or already attached")
	}
	return nil
}
