package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *Account) error
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Account, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
	CreateIdentity(ctx context.Context, identity *ExternalIdentity) error
	FindIdentity(ctx context.Context, provider, subject string) (*ExternalIdentity, error)
}

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrIdentityNotFound = errors.New("external identity not found")
)
