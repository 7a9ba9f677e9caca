// Package domain contains persistence models for tenant workspaces.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant workspace.
type Organization struct {
	ID   snowflake.ID `gorm:"primaryKey" json:"id"`
	Name string       `gorm:"type:text;not null" json:"name"`
	Slug string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`

	PlanTier string `gorm:"type:text;not null" json:"plan_tier"`

	// BillingCustomerID is filled in asynchronously by the billing worker
	// and is the only field the task layer mutates.
	BillingCustomerID *string `gorm:"column:billing_customer_id;type:text" json:"billing_customer_id,omitempty"`

	IsSystem  bool              `gorm:"column:is_system;not null;default:false" json:"is_system"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Membership binds an account to an organization with a role.
type Membership struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_account,priority:1" json:"org_id"`
	AccountID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_account,priority:2" json:"account_id"`
	RoleID    snowflake.ID `gorm:"not null" json:"role_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "memberships" }

// Role is a named entry in the externally managed role catalog. Only
// lookup-or-create by well-known name happens here.
type Role struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_roles_name" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Role) TableName() string { return "roles" }

// StarterResource is the starter template stub provisioned for flows that
// request it.
type StarterResource struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Kind      string       `gorm:"type:text;not null" json:"kind"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (StarterResource) TableName() string { return "starter_resources" }
