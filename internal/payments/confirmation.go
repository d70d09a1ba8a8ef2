package payments

import (
	"github.com/google/uuid"

	"github.com/kelvinchng/storefront-backend/pkg/enums"
)

// Confirmation is the proof-of-settlement variant handed to
// ConfirmAndCreateOrder. Each gateway supplies its own kind carrying the
// pending-transaction row the new order must be attached to.
type Confirmation interface {
	paymentMethod() enums.PaymentMethod
}

// NetsConfirmation references a nets_transactions row already marked
// successful.
type NetsConfirmation struct {
	TransactionID uuid.UUID
}

func (NetsConfirmation) paymentMethod() enums.PaymentMethod { return enums.PaymentMethodNets }

// PaypalConfirmation references a captured paypal_transactions row.
type PaypalConfirmation struct {
	TransactionID uuid.UUID
}

func (PaypalConfirmation) paymentMethod() enums.PaymentMethod { return enums.PaymentMethodPaypal }

// StripeConfirmation references a paid stripe_transactions row.
type StripeConfirmation struct {
	TransactionID uuid.UUID
}

func (StripeConfirmation) paymentMethod() enums.PaymentMethod { return enums.PaymentMethodStripe }

// WalletConfirmation references the completed debit ledger row; its id is the
// correlation the order is attached back to.
type WalletConfirmation struct {
	WalletTxnID uuid.UUID
}

func (WalletConfirmation) paymentMethod() enums.PaymentMethod { return enums.PaymentMethodWallet }
