// Package domain contains core types for accounts and linked identities.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Account represents a person. One account exists per normalized email.
type Account struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	Email        string            `gorm:"type:text;not null;uniqueIndex:ux_accounts_email"`
	DisplayName  string            `gorm:"type:text;not null"`
	PasswordHash *string           `gorm:"type:text"`
	DefaultOrgID *snowflake.ID     `gorm:"column:default_org_id"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// ExternalIdentity binds a (provider, subject) pair to exactly one account.
// Created only during OAuth flows.
type ExternalIdentity struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	AccountID snowflake.ID `gorm:"column:account_id;not null;index"`
	Provider  string       `gorm:"type:text;not null;uniqueIndex:ux_external_identities_provider_subject,priority:1"`
	Subject   string       `gorm:"type:text;not null;uniqueIndex:ux_external_identities_provider_subject,priority:2"`
	Email     string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ExternalIdentity) TableName() string { return "external_identities" }
