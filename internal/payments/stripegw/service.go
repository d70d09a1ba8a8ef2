package stripegw

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/internal/orders"
	"github.com/kelvinchng/storefront-backend/internal/payments"
	"github.com/kelvinchng/storefront-backend/internal/payments/intent"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	"github.com/kelvinchng/storefront-backend/pkg/enums"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
	"github.com/kelvinchng/storefront-backend/pkg/stripe"
)

type gateway interface {
	CreateCheckoutSession(ctx context.Context, items []stripe.LineItem) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
}

// SessionResult hands the hosted-checkout redirect back to the client.
type SessionResult struct {
	SessionID string          `json:"session_id"`
	URL       string          `json:"url"`
	Amount    decimal.Decimal `json:"amount"`
}

// Service drives the Stripe hosted-checkout flow: open a session from the
// priced cart, then confirm the paid session into an order.
type Service struct {
	db        *gorm.DB
	gateway   gateway
	intents   *intent.Store
	payments  payments.Service
	ordersSvc orders.Service
	currency  string
	logger    *logger.Logger
}

// NewService builds the Stripe payment service.
func NewService(
	db *gorm.DB,
	gw gateway,
	intents *intent.Store,
	paymentsSvc payments.Service,
	ordersSvc orders.Service,
	currency string,
	logg *logger.Logger,
) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	if gw == nil {
		return nil, fmt.Errorf("stripe gateway required")
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
	if currency == "" {
		currency = "sgd"
	}
	return &Service{
		db:        db,
		gateway:   gw,
		intents:   intents,
		payments:  paymentsSvc,
		ordersSvc: ordersSvc,
		currency:  currency,
		logger:    logg,
	}, nil
}

// CreateSession prices the cart and opens a hosted checkout session with one
// line item per priced row. The intent record is keyed by the session id.
func (s *Service) CreateSession(ctx context.Context, userID uuid.UUID, isTest bool) (*SessionResult, error) {
	priced, err := s.ordersSvc.PriceCartForCheckout(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]stripe.LineItem, 0, len(priced.Items))
	for _, row := range priced.Items {
		items = append(items, stripe.LineItem{
			Name:      row.ProductName,
			UnitPrice: row.UnitPrice,
			Quantity:  row.Quantity,
		})
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, items)
	if err != nil {
		return nil, err
	}

	record := &intent.Record{
		ID:         session.ID,
		UserID:     userID,
		Kind:       intent.KindPurchase,
		Method:     enums.PaymentMethodStripe,
		Amount:     priced.Total,
		Cart:       priced,
		GatewayRef: session.ID,
		IsTest:     isTest,
	}
	if err := s.intents.Create(ctx, record); err != nil {
		return nil, err
	}

	if s.logger != nil {
		lctx := s.logger.WithGatewayRef(s.logger.WithUserID(ctx, userID.String()), session.ID)
		s.logger.Info(lctx, "stripe checkout session opened")
	}
	return &SessionResult{SessionID: session.ID, URL: session.URL, Amount: priced.Total}, nil
}

// Confirm consumes the intent, verifies the session is paid server-side,
// records the transaction, and materializes the order.
func (s *Service) Confirm(ctx context.Context, userID uuid.UUID, sessionID string) (*models.Order, error) {
	record, err := s.intents.Consume(ctx, enums.PaymentMethodStripe, sessionID, userID)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.GetCheckoutSession(ctx, record.GatewayRef)
	if err != nil {
		return nil, err
	}
	if !session.Paid {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRejected, "checkout session is not paid").WithDetails(map[string]any{
			"session_id": session.ID,
		})
	}
	if record.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeOrderIntegrity, "pending payment has no cart snapshot")
	}

	amount := record.Amount
	if !session.AmountTotal.IsZero() {
		amount = session.AmountTotal
	}
	txn := models.StripeTransaction{
		ID:              uuid.New(),
		UserID:          userID,
		SessionID:       session.ID,
		PaymentIntentID: session.PaymentIntentID,
		Amount:          amount.Round(2),
		Currency:        s.currency,
		Status:          enums.PaymentTxnStatusSuccess,
	}
	if err := s.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, err
	}

	if s.logger != nil {
		lctx := s.logger.WithGatewayRef(s.logger.WithUserID(ctx, userID.String()), session.ID)
		s.logger.Info(lctx, "stripe checkout session confirmed")
	}
	return s.payments.ConfirmAndCreateOrder(ctx, userID, *record.Cart, record.IsTest, payments.StripeConfirmation{TransactionID: txn.ID})
}
