package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/pkg/enums"
)

// Payout records money owed to a professional for a settled stint. The
// unique constraint on stint_id is the at-most-one-payout-per-stint guard;
// concurrent settlement runs race on the insert, not on a read-then-write.
type Payout struct {
	ID                    uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StintID               uuid.UUID          `gorm:"column:stint_id;type:uuid;not null;unique"`
	ProfessionalID        uuid.UUID          `gorm:"column:professional_id;type:uuid;not null;index"`
	EmployerID            uuid.UUID          `gorm:"column:employer_id;type:uuid;not null"`
	GrossAmountCents      int64              `gorm:"column:gross_amount_cents;not null"`
	PlatformFeePercent    int                `gorm:"column:platform_fee_percent;not null"`
	PlatformFeeCents      int64              `gorm:"column:platform_fee_cents;not null"`
	GatewayCostCents      int64              `gorm:"column:gateway_cost_cents;not null"`
	NetAmountCents        int64              `gorm:"column:net_amount_cents;not null"`
	Currency              enums.Currency     `gorm:"column:currency;not null;default:'KES'"`
	Method                enums.PayoutMethod `gorm:"column:method;type:payout_method;not null;default:'mpesa'"`
	Status                enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	ScheduledAt           time.Time          `gorm:"column:scheduled_at;not null"`
	RetryCount            int                `gorm:"column:retry_count;not null;default:0"`
	ExternalTransactionID *string            `gorm:"column:external_transaction_id"`
	FailureReason         *string            `gorm:"column:failure_reason"`
	FeeScheduleVersion    int                `gorm:"column:fee_schedule_version;not null;default:1"`
	CreatedAt             time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
