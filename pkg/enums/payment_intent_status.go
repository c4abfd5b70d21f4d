package enums

import "fmt"

// PaymentIntentStatus tracks the lifecycle of an employer-side charge.
type PaymentIntentStatus string

const (
	PaymentIntentStatusCreated    PaymentIntentStatus = "created"
	PaymentIntentStatusProcessing PaymentIntentStatus = "processing"
	PaymentIntentStatusSuccess    PaymentIntentStatus = "success"
	PaymentIntentStatusFailed     PaymentIntentStatus = "failed"
	PaymentIntentStatusExpired    PaymentIntentStatus = "expired"
)

var validPaymentIntentStatuses = []PaymentIntentStatus{
	PaymentIntentStatusCreated,
	PaymentIntentStatusProcessing,
	PaymentIntentStatusSuccess,
	PaymentIntentStatusFailed,
	PaymentIntentStatusExpired,
}

// String implements fmt.Stringer.
func (p PaymentIntentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentIntentStatus.
func (p PaymentIntentStatus) IsValid() bool {
	for _, candidate := range validPaymentIntentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status can never change again.
func (p PaymentIntentStatus) IsTerminal() bool {
	switch p {
	case PaymentIntentStatusSuccess, PaymentIntentStatusFailed, PaymentIntentStatusExpired:
		return true
	}
	return false
}

// ParsePaymentIntentStatus converts raw input into a PaymentIntentStatus.
func ParsePaymentIntentStatus(value string) (PaymentIntentStatus, error) {
	for _, candidate := range validPaymentIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment intent status %q", value)
}
