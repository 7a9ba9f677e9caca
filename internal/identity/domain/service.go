// Package domain contains the identity resolution contract shared by the
// signup entry points.
package domain

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Flow identifies the signup entry point a request arrived through.
type Flow string

const (
	FlowPassword    Flow = "password"
	FlowOAuthWeb    Flow = "oauth_web"
	FlowOAuthNative Flow = "oauth_native"
)

func (f Flow) IsOAuth() bool {
	return f == FlowOAuthWeb || f == FlowOAuthNative
}

// Assertion is a verified external-identity claim produced by an upstream
// OAuth exchange. It contains facts only, no decisions.
type Assertion struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
}

// Credential carries the flow-specific identity input.
type Credential struct {
	Email     string     // password flow
	Assertion *Assertion // oauth flows
}

// Resolution is the outcome of identity resolution. Either an existing
// account was found, or the normalized email is free to provision.
type Resolution struct {
	Existing  bool
	AccountID snowflake.ID

	// LinkIdentity is set when an existing account was matched by email
	// rather than by identity binding; the caller is expected to link the
	// assertion to that account instead of creating a second tenant.
	LinkIdentity bool

	NormalizedEmail string
}

type Resolver interface {
	Resolve(ctx context.Context, flow Flow, cred Credential) (*Resolution, error)
}

var (
	ErrAccountExists = errors.New("account already exists")
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrInvalidFlow   = errors.New("invalid signup flow")
)

// NormalizeEmail lowercases and validates an email address.
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}
