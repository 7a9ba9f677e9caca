// Package domain contains the provisioning attempt record and orchestration
// contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type AttemptStatus string

const (
	AttemptInFlight  AttemptStatus = "in_flight"
	AttemptSucceeded AttemptStatus = "succeeded"
	AttemptFailed    AttemptStatus = "failed"
)

// Attempt is the idempotency record for one logical provisioning request.
// The row doubles as the short-lived lease on the key: while the lease is
// live, concurrent requests with the same key are refused instead of racing.
type Attempt struct {
	ID             snowflake.ID  `gorm:"primaryKey"`
	IdempotencyKey string        `gorm:"column:idempotency_key;type:text;not null;uniqueIndex:ux_provisioning_attempts_key"`
	Flow           string        `gorm:"type:text;not null"`
	Status         AttemptStatus `gorm:"type:text;not null"`
	LeaseToken     string        `gorm:"column:lease_token;type:text;not null"`
	LeaseExpiresAt time.Time     `gorm:"column:lease_expires_at;not null"`

	AccountID    *snowflake.ID `gorm:"column:account_id"`
	OrgID        *snowflake.ID `gorm:"column:org_id"`
	IsNewAccount bool          `gorm:"column:is_new_account;not null;default:false"`

	FailureReason *string   `gorm:"column:failure_reason;type:text"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Attempt) TableName() string { return "provisioning_attempts" }
