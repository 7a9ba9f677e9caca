// Package domain contains the durable post-commit task queue types.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusQueued Status = "queued"
	StatusLeased Status = "leased"
	StatusDone   Status = "done"
	StatusDead   Status = "dead"
)

// Well-known task kinds enqueued after a successful provisioning commit.
const (
	KindWelcomeEmail    = "notification.welcome"
	KindSalesAlert      = "alert.sales_signup"
	KindBillingCustomer = "billing.create_customer"
)

// Task is one queued post-commit job. Delivery is at-least-once: a task may
// be handed to more than one worker invocation over its lifetime, so
// handlers must be idempotent.
type Task struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Kind      string            `gorm:"type:text;not null;index" json:"kind"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"payload"`
	DedupeKey string            `gorm:"column:dedupe_key;type:text;not null;uniqueIndex:ux_tasks_dedupe_key" json:"dedupe_key"`

	OrgID     *snowflake.ID `gorm:"column:org_id;index" json:"org_id,omitempty"`
	AccountID *snowflake.ID `gorm:"column:account_id" json:"account_id,omitempty"`

	Status        Status     `gorm:"type:text;not null;index" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null;index" json:"next_attempt_at"`
	LeaseToken    *string    `gorm:"column:lease_token;type:text" json:"-"`
	LeaseExpiresAt *time.Time `gorm:"column:lease_expires_at" json:"lease_expires_at,omitempty"`
	LastError     *string    `gorm:"column:last_error;type:text" json:"last_error,omitempty"`

	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

// TableName sets the database table name.
func (Task) TableName() string { return "tasks" }
