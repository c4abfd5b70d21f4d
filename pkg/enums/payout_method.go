package enums

import "fmt"

// PayoutMethod identifies how a professional receives funds.
type PayoutMethod string

const (
	PayoutMethodMpesa        PayoutMethod = "mpesa"
	PayoutMethodBankTransfer PayoutMethod = "bank_transfer"
)

var validPayoutMethods = []PayoutMethod{
	PayoutMethodMpesa,
	PayoutMethodBankTransfer,
}

// String implements fmt.Stringer.
func (p PayoutMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutMethod.
func (p PayoutMethod) IsValid() bool {
	for _, candidate := range validPayoutMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutMethod converts raw input into a PayoutMethod.
func ParsePayoutMethod(value string) (PayoutMethod, error) {
	for _, candidate := range validPayoutMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout method %q", value)
}
