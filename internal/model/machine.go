package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Machine is a single slot machine. It belongs to exactly one client.
type Machine struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code       string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name       string          `gorm:"type:varchar(255);not null" json:"name"`
	Multiplier decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"multiplier"` // meter units -> currency
	ClientID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	RegionID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"region_id"`
	OperatorID *uuid.UUID      `gorm:"type:uuid;index" json:"operator_id"` // direct assignment, informational
	Active     bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
