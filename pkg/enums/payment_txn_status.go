package enums

import "fmt"

// PaymentTxnStatus tracks the lifecycle of a gateway payment transaction.
type PaymentTxnStatus string

const (
	PaymentTxnStatusPending PaymentTxnStatus = "pending"
	PaymentTxnStatusSuccess PaymentTxnStatus = "success"
	PaymentTxnStatusFailed  PaymentTxnStatus = "failed"
	PaymentTxnStatusTimeout PaymentTxnStatus = "timeout"
	PaymentTxnStatusError   PaymentTxnStatus = "error"
	// Refund settled on the original gateway.
	PaymentTxnStatusRefunded PaymentTxnStatus = "refunded"
	// Refund settled by crediting the user's wallet instead of the gateway.
	PaymentTxnStatusRefundedWallet PaymentTxnStatus = "refunded_wallet"
)

var validPaymentTxnStatuses = []PaymentTxnStatus{
	PaymentTxnStatusPending,
	PaymentTxnStatusSuccess,
	PaymentTxnStatusFailed,
	PaymentTxnStatusTimeout,
	PaymentTxnStatusError,
	PaymentTxnStatusRefunded,
	PaymentTxnStatusRefundedWallet,
}

// String implements fmt.Stringer.
func (p PaymentTxnStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentTxnStatus.
func (p PaymentTxnStatus) IsValid() bool {
	for _, candidate := range validPaymentTxnStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status transitions are allowed.
func (p PaymentTxnStatus) IsTerminal() bool {
	return p != PaymentTxnStatusPending
}

// ParsePaymentTxnStatus converts raw input into a PaymentTxnStatus.
func ParsePaymentTxnStatus(value string) (PaymentTxnStatus, error) {
	for _, candidate := range validPaymentTxnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment transaction status %q", value)
}
