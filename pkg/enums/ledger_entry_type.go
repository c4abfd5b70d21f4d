package enums

import "fmt"

// LedgerEntryType maps to the ledger_entry_type_enum enum in Postgres.
type LedgerEntryType string

const (
	LedgerEntryTypeFeeComputed      LedgerEntryType = "fee_computed"
	LedgerEntryTypePaymentInitiated LedgerEntryType = "payment_initiated"
	LedgerEntryTypePaymentSucceeded LedgerEntryType = "payment_succeeded"
	LedgerEntryTypePaymentFailed    LedgerEntryType = "payment_failed"
	LedgerEntryTypePaymentExpired   LedgerEntryType = "payment_expired"
	LedgerEntryTypePayoutScheduled  LedgerEntryType = "payout_scheduled"
	LedgerEntryTypePayoutAttempted  LedgerEntryType = "payout_attempted"
	LedgerEntryTypePayoutCompleted  LedgerEntryType = "payout_completed"
	LedgerEntryTypePayoutFailed     LedgerEntryType = "payout_failed"
	LedgerEntryTypeInvoiceIssued    LedgerEntryType = "invoice_issued"
	LedgerEntryTypeManualAdjustment LedgerEntryType = "manual_adjustment"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeFeeComputed,
	LedgerEntryTypePaymentInitiated,
	LedgerEntryTypePaymentSucceeded,
	LedgerEntryTypePaymentFailed,
	LedgerEntryTypePaymentExpired,
	LedgerEntryTypePayoutScheduled,
	LedgerEntryTypePayoutAttempted,
	LedgerEntryTypePayoutCompleted,
	LedgerEntryTypePayoutFailed,
	LedgerEntryTypeInvoiceIssued,
	LedgerEntryTypeManualAdjustment,
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
