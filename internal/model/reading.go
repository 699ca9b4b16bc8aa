package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reading is one settled set of meter counters for a machine.
// Derived money fields and the commission snapshot are written once at creation
// and never recomputed, so later configuration changes do not alter history.
type Reading struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MachineID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"machine_id"`
	PreviousIn  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"previous_in"`
	PreviousOut decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"previous_out"`
	CurrentIn   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"current_in"`
	CurrentOut  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"current_out"`

	GrossValue         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"gross_value"`
	ClientCommission   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"client_commission"`
	OperatorCommission decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"operator_commission"`
	NetValue           decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"net_value"`

	// Configuration snapshot at settlement time
	Multiplier              decimal.Decimal  `gorm:"type:decimal(10,4);not null" json:"multiplier"`
	ClientID                uuid.UUID        `gorm:"type:uuid;not null;index" json:"client_id"`
	ClientCommissionType    string           `gorm:"type:varchar(20);not null" json:"client_commission_type"`
	ClientCommissionValue   decimal.Decimal  `gorm:"type:decimal(10,4);not null" json:"client_commission_value"`
	OperatorID              *uuid.UUID       `gorm:"type:uuid;index" json:"operator_id"`
	OperatorCommissionType  *string          `gorm:"type:varchar(20)" json:"operator_commission_type"`
	OperatorCommissionValue *decimal.Decimal `gorm:"type:decimal(10,4)" json:"operator_commission_value"`

	ReadingDate time.Time `gorm:"not null;index" json:"reading_date"`
	CreatedAt   time.Time `json:"created_at"`
}
