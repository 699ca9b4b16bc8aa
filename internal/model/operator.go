package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Operator is the field agent responsible for one or more clients (see Link)
type Operator struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name            string          `gorm:"type:varchar(255);not null;index" json:"name"`
	CommissionType  string          `gorm:"type:varchar(20);not null" json:"commission_type"`
	CommissionValue decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"commission_value"`
	Phone           *string         `gorm:"type:varchar(50)" json:"phone"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
