package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	identitydomain "github.com/voundbrand/gatehouse/internal/identity/domain"
)

var (
	// ErrConflict means another request holds a live lease on the same
	// idempotency key. Callers should retry after a short delay.
	ErrConflict = errors.New("provisioning: request already in flight")

	// ErrAlreadyExists is returned on the password flow when the email is
	// already registered.
	ErrAlreadyExists = errors.New("provisioning: account already exists")

	ErrAttemptNotFound = errors.New("provisioning: attempt not found")
)

// ValidationError reports a malformed field in a provisioning request.
// Validation runs before any storage is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("provisioning: invalid %s: %s", e.Field, e.Reason)
}

// Request carries everything an entry point knows about the signup.
type Request struct {
	Email       string
	Password    string
	DisplayName string
	OrgName     string
	PlanTier    string

	// Assertion is set on OAuth flows only.
	Assertion *identitydomain.Assertion

	// ProvisionStarterResources seeds a default project for flows that
	// want the account usable immediately.
	ProvisionStarterResources bool
}

// Result is what a completed provisioning run reports back. Replays of an
// already-succeeded key return the originally recorded identifiers.
type Result struct {
	AccountID    snowflake.ID
	OrgID        snowflake.ID
	IsNewAccount bool

	// RawAPIKey is the plaintext bootstrap key, present only on the first
	// successful password-flow run. It is never recoverable afterwards.
	RawAPIKey string
}

type Service interface {
	// Provision resolves the identity and, for new accounts, creates the
	// full account graph in a single transaction. Safe to retry with the
	// same idempotency key.
	Provision(ctx context.Context, idempotencyKey string, flow identitydomain.Flow, req Request) (*Result, error)
}

// Repository persists provisioning attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, attempt *Attempt) error
	FindByKey(ctx context.Context, key string) (*Attempt, error)

	// TakeOver re-arms an attempt whose lease expired or that previously
	// failed. Returns false when another request won the race.
	TakeOver(ctx context.Context, id snowflake.ID, oldToken, newToken string, leaseExpiresAt time.Time) (bool, error)

	MarkSucceeded(ctx context.Context, id snowflake.ID, token string, accountID, orgID snowflake.ID, isNew bool) error
	MarkFailed(ctx context.Context, id snowflake.ID, token, reason string) error
}
