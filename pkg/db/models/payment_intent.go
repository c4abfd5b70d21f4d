package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/pkg/enums"
)

// PaymentIntent tracks the employer-side charge raised when an employer
// accepts an applicant for a stint. At most one non-terminal intent may
// exist per (stint, application) pair; the partial unique index
// payment_intents_active_stint_application_key enforces it.
type PaymentIntent struct {
	ID               uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StintID          uuid.UUID                 `gorm:"column:stint_id;type:uuid;not null;index"`
	ApplicationID    uuid.UUID                 `gorm:"column:application_id;type:uuid;not null"`
	EmployerID       uuid.UUID                 `gorm:"column:employer_id;type:uuid;not null"`
	ProfessionalID   uuid.UUID                 `gorm:"column:professional_id;type:uuid;not null"`
	AmountCents      int64                     `gorm:"column:amount_cents;not null"`
	Currency         enums.Currency            `gorm:"column:currency;not null;default:'KES'"`
	Urgent           bool                      `gorm:"column:urgent;not null;default:false"`
	GatewayReference *string                   `gorm:"column:gateway_reference;uniqueIndex"`
	Status           enums.PaymentIntentStatus `gorm:"column:status;type:payment_intent_status;not null;default:'created'"`
	FailureReason    *string                   `gorm:"column:failure_reason"`
	CreatedAt        time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
	ExpiresAt        time.Time                 `gorm:"column:expires_at;not null"`
}
