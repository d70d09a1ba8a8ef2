package enums

import "fmt"

// PaymentMethod identifies which gateway settled (or will settle) an order.
type PaymentMethod string

const (
	PaymentMethodNets   PaymentMethod = "nets"
	PaymentMethodPaypal PaymentMethod = "paypal"
	PaymentMethodStripe PaymentMethod = "stripe"
	PaymentMethodWallet PaymentMethod = "wallet"
	// Admin-issued wallet top-ups; never a settlement method for orders.
	PaymentMethodAdmin PaymentMethod = "admin"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodNets,
	PaymentMethodPaypal,
	PaymentMethodStripe,
	PaymentMethodWallet,
	PaymentMethodAdmin,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
