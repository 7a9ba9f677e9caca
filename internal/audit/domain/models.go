// Package domain contains the append-only audit trail types.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ActorTypeAccount = "account"
	ActorTypeSystem  = "system"
)

// Event is an immutable record of a provisioning outcome. Rows are never
// updated or deleted by this service.
type Event struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      *snowflake.ID     `gorm:"column:org_id;index" json:"org_id,omitempty"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id,omitempty"`
	Outcome    string            `gorm:"type:text;not null" json:"outcome"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "audit_events" }
