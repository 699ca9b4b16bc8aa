package model

import (
	"time"

	"github.com/google/uuid"
)

// Link assigns an operator as the responsible party for a client.
// A client has at most one link; the unique index enforces it at the store level.
type Link struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"client_id"`
	OperatorID uuid.UUID `gorm:"type:uuid;not null;index" json:"operator_id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
