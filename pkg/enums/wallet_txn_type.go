package enums

import "fmt"

// WalletTxnType classifies a wallet ledger entry.
type WalletTxnType string

const (
	WalletTxnTypeTopup   WalletTxnType = "topup"
	WalletTxnTypePayment WalletTxnType = "payment"
	WalletTxnTypeRefund  WalletTxnType = "refund"
)

var validWalletTxnTypes = []WalletTxnType{
	WalletTxnTypeTopup,
	WalletTxnTypePayment,
	WalletTxnTypeRefund,
}

// String implements fmt.Stringer.
func (w WalletTxnType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletTxnType.
func (w WalletTxnType) IsValid() bool {
	for _, candidate := range validWalletTxnTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// IsCredit reports whether entries of this type increase the balance.
func (w WalletTxnType) IsCredit() bool {
	return w == WalletTxnTypeTopup || w == WalletTxnTypeRefund
}

// ParseWalletTxnType converts raw input into a WalletTxnType.
func ParseWalletTxnType(value string) (WalletTxnType, error) {
	for _, candidate := range validWalletTxnTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}
