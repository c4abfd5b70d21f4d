package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/vitalshift/vitalshift-backend/pkg/enums"
)

// LedgerEntry records an immutable money lifecycle event tied to a stint.
// Rows are only ever inserted; reconciliation and dispute investigation read
// them back in order.
type LedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StintID     uuid.UUID             `gorm:"column:stint_id;type:uuid;not null;index"`
	Type        enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type_enum;not null"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	Currency    enums.Currency        `gorm:"column:currency;not null;default:'KES'"`
	Reference   *string               `gorm:"column:reference"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
