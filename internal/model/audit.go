package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateClient   = "CREATE_CLIENT"
	ActionUpdateClient   = "UPDATE_CLIENT"
	ActionDeleteClient   = "DELETE_CLIENT"
	ActionCreateOperator = "CREATE_OPERATOR"
	ActionUpdateOperator = "UPDATE_OPERATOR"
	ActionDeleteOperator = "DELETE_OPERATOR"
	ActionCreateMachine  = "CREATE_MACHINE"
	ActionUpdateMachine  = "UPDATE_MACHINE"
	ActionDeleteMachine  = "DELETE_MACHINE"
	ActionCreateRegion   = "CREATE_REGION"
	ActionUpdateRegion   = "UPDATE_REGION"
	ActionDeleteRegion   = "DELETE_REGION"
	ActionCreateLink     = "CREATE_LINK"
	ActionDeleteLink     = "DELETE_LINK"

	// Settlement actions
	ActionCreateReading  = "CREATE_READING"
	ActionDeleteReading  = "DELETE_READING"
	ActionImportReadings = "IMPORT_READINGS"
	ActionSettleRound    = "SETTLE_ROUND"
	ActionImportBackup   = "IMPORT_BACKUP"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for system-initiated changes
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
