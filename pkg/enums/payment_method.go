package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how a sale was settled at the register.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
}

// legacyCardBanks lists the bank-named methods older registers still send. Each one
// is a card payment through that bank.
var legacyCardBanks = []string{"BOG", "TBC"}

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

// IsCardLike reports whether a bank tag applies to the method.
func (p PaymentMethod) IsCardLike() bool {
	return p == PaymentMethodCard
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// NormalizePaymentMethod resolves the method and, for legacy bank-named methods, the
// implied bank. A legacy name always wins over an explicit bank.
func NormalizePaymentMethod(value string) (PaymentMethod, string, error) {
	trimmed := strings.TrimSpace(value)
	for _, bank := range legacyCardBanks {
		if strings.EqualFold(trimmed, bank) {
			return PaymentMethodCard, bank, nil
		}
	}
	method, err := ParsePaymentMethod(trimmed)
	if err != nil {
		return "", "", err
	}
	return method, "", nil
}
