package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Record describes one provisioning outcome to append.
type Record struct {
	OrgID      *snowflake.ID
	ActorType  string
	ActorID    *string
	Action     string
	TargetType string
	TargetID   *string
	Outcome    string
	Metadata   map[string]any
}

type Service interface {
	// Record appends an event. A failure is reported to the caller but must
	// never be allowed to fail the operation being audited.
	Record(ctx context.Context, rec Record) error

	// ListByAction returns recent events for operator inspection.
	ListByAction(ctx context.Context, action string, limit int) ([]Event, error)
}

var ErrInvalidAction = errors.New("invalid_action")
