package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/pkg/enums"
)

// Stint is the staffing shift the rest of the platform owns. The settlement
// engine reads the completion gate fields and flips status/settlement flags;
// it never creates or deletes rows here.
type Stint struct {
	ID                    uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EmployerID            uuid.UUID          `gorm:"column:employer_id;type:uuid;not null"`
	ProfessionalID        *uuid.UUID         `gorm:"column:professional_id;type:uuid"`
	ApplicationID         *uuid.UUID         `gorm:"column:application_id;type:uuid"`
	OfferedRateCents      int64              `gorm:"column:offered_rate_cents;not null"`
	Currency              enums.Currency     `gorm:"column:currency;not null;default:'KES'"`
	Urgent                bool               `gorm:"column:urgent;not null;default:false"`
	PayoutMethod          enums.PayoutMethod `gorm:"column:payout_method;type:payout_method;not null;default:'mpesa'"`
	Status                enums.StintStatus  `gorm:"column:status;type:stint_status;not null;default:'open'"`
	CompletedAt           *time.Time         `gorm:"column:completed_at"`
	DisputeWindowEndsAt   *time.Time         `gorm:"column:dispute_window_ends_at"`
	IsReadyForSettlement  bool               `gorm:"column:is_ready_for_settlement;not null;default:false"`
	SettledAt             *time.Time         `gorm:"column:settled_at"`
	CreatedAt             time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
