// Package domain contains resource-ceiling models for tenants and accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	OwnerTypeOrganization = "organization"
	OwnerTypeAccount      = "account"
)

// Quota holds the resource ceilings for one owner. Rows exist if and only if
// the owning organization or account exists.
type Quota struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerType    string       `gorm:"type:text;not null;uniqueIndex:ux_quotas_owner,priority:1" json:"owner_type"`
	OwnerID      snowflake.ID `gorm:"not null;uniqueIndex:ux_quotas_owner,priority:2" json:"owner_id"`
	StorageBytes int64        `gorm:"not null" json:"storage_bytes"`
	MaxProjects  int          `gorm:"not null" json:"max_projects"`
	MaxMembers   int          `gorm:"not null" json:"max_members"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Quota) TableName() string { return "quotas" }

// Limits is the per-tier ceiling set applied at provisioning time.
type Limits struct {
	StorageBytes int64 `mapstructure:"storage_bytes"`
	MaxProjects  int   `mapstructure:"max_projects"`
	MaxMembers   int   `mapstructure:"max_members"`
}
