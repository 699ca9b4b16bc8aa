package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionType enum constants
const (
	CommissionPercentage = "percentage"
	CommissionFixed      = "fixed"
)

// Client owns machines and receives a commission on every reading of them
type Client struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name            string          `gorm:"type:varchar(255);not null;index" json:"name"`
	CommissionType  string          `gorm:"type:varchar(20);not null" json:"commission_type"`  // percentage, fixed
	CommissionValue decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"commission_value"` // 0-100 for percentage, amount for fixed
	Phone           *string         `gorm:"type:varchar(50)" json:"phone"`
	Email           *string         `gorm:"type:varchar(255)" json:"email"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
