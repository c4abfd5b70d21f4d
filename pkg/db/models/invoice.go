package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/pkg/enums"
)

// Invoice is the employer-side record of the booking fee owed for a settled
// stint. Created in the same transaction as the payout.
type Invoice struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceNumber    string          `gorm:"column:invoice_number;not null;unique"`
	EmployerID       uuid.UUID       `gorm:"column:employer_id;type:uuid;not null;index"`
	StintID          uuid.UUID       `gorm:"column:stint_id;type:uuid;not null;index"`
	AmountCents      int64           `gorm:"column:amount_cents;not null"`
	FeePercent       int             `gorm:"column:fee_percent;not null"`
	TotalChargeCents int64           `gorm:"column:total_charge_cents;not null"`
	Currency         enums.Currency  `gorm:"column:currency;not null;default:'KES'"`
	DueAt            time.Time       `gorm:"column:due_at;not null"`
	IsPaid           bool            `gorm:"column:is_paid;not null;default:false"`
	PaidAt           *time.Time      `gorm:"column:paid_at"`
	LineItems        json.RawMessage `gorm:"column:line_items;type:jsonb"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
