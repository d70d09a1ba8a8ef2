package enums

import "fmt"

// WalletTxnStatus records whether a wallet ledger entry moved funds.
type WalletTxnStatus string

const (
	WalletTxnStatusCompleted WalletTxnStatus = "completed"
	WalletTxnStatusFailed    WalletTxnStatus = "failed"
)

var validWalletTxnStatuses = []WalletTxnStatus{
	WalletTxnStatusCompleted,
	WalletTxnStatusFailed,
}

// String implements fmt.Stringer.
func (w WalletTxnStatus) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletTxnStatus.
func (w WalletTxnStatus) IsValid() bool {
	for _, candidate := range validWalletTxnStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletTxnStatus converts raw input into a WalletTxnStatus.
func ParseWalletTxnStatus(value string) (WalletTxnStatus, error) {
	for _, candidate := range validWalletTxnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction status %q", value)
}
