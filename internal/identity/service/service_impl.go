package service

import (
	"context"
	"errors"
	"strings"

	accountdomain "github.com/voundbrand/gatehouse/internal/account/domain"
	"github.com/voundbrand/gatehouse/internal/identity/domain"
	"go.uber.org/zap"
)

// Resolver decides whether a signup credential maps to an existing account.
// It is the only place identity-to-account mapping logic lives, and it never
// writes: linking and creation are the orchestrator's job.
type Resolver struct {
	log      *zap.Logger
	accounts accountdomain.Repository
}

func New(log *zap.Logger, accounts accountdomain.Repository) domain.Resolver {
	return &Resolver{
		log:      log.Named("identity.resolver"),
		accounts: accounts,
	}
}

func (r *Resolver) Resolve(ctx context.Context, flow domain.Flow, cred domain.Credential) (*domain.Resolution, error) {
	switch flow {
	case domain.FlowPassword:
		return r.resolvePassword(ctx, cred)
	case domain.FlowOAuthWeb, domain.FlowOAuthNative:
		return r.resolveOAuth(ctx, cred)
	default:
		return nil, domain.ErrInvalidFlow
	}
}

func (r *Resolver) resolvePassword(ctx context.Context, cred domain.Credential) (*domain.Resolution, error) {
	email, err := domain.NormalizeEmail(cred.Email)
	if err != nil {
		return nil, err
	}

	_, err = r.accounts.FindByEmail(ctx, email)
	if err == nil {
		// Password signup never silently logs in.
		return nil, domain.ErrAccountExists
	}
	if !errors.Is(err, accountdomain.ErrAccountNotFound) {
		return nil, err
	}

	return &domain.Resolution{NormalizedEmail: email}, nil
}

func (r *Resolver) resolveOAuth(ctx context.Context, cred domain.Credential) (*domain.Resolution, error) {
	assertion := cred.Assertion
	if assertion == nil || strings.TrimSpace(assertion.Provider) == "" || strings.TrimSpace(assertion.Subject) == "" {
		return nil, domain.ErrInvalidFlow
	}

	// Identity binding takes precedence over email matching: a bound
	// (provider, subject) resolves even when the provider now asserts a
	// different email for the same subject.
	identity, err := r.accounts.FindIdentity(ctx, assertion.Provider, assertion.Subject)
	if err == nil {
		return &domain.Resolution{
			Existing:  true,
			AccountID: identity.AccountID,
		}, nil
	}
	if !errors.Is(err, accountdomain.ErrIdentityNotFound) {
		return nil, err
	}

	email, err := domain.NormalizeEmail(assertion.Email)
	if err != nil {
		return nil, err
	}

	account, err := r.accounts.FindByEmail(ctx, email)
	if err == nil {
		// One human, two providers: link a new identity to the existing
		// account rather than creating a duplicate tenant.
		return &domain.Resolution{
			Existing:        true,
			AccountID:       account.ID,
			LinkIdentity:    true,
			NormalizedEmail: email,
		}, nil
	}
	if !errors.Is(err, accountdomain.ErrAccountNotFound) {
		return nil, err
	}

	return &domain.Resolution{NormalizedEmail: email}, nil
}
