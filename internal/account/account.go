// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

// Package account persists login accounts: the binding from a login name to
// a password hash and a stable unique ID, plus the hashed auth code used to
// claim the account.
package account

import (
	"context"

	"github.com/samber/oops"
)

// Unique IDs handed to persisted accounts start here. They must stay below
// the 10,000,000 floor used for unregistered connections.
const uniqueIDFloor = 1_000_000

// ErrNotFound is returned when no account exists under a login name.
var ErrNotFound = oops.Code("ACCOUNT_NOT_FOUND").Errorf("account not found")

// Account is one persisted login account. PasswordHash is nil until the
// owner completes registration with an issued auth code; AuthCodeHash is
// empty when no code is outstanding.
type Account struct {
	LoginName    string
	PasswordHash []byte
	UniqueID     int
	AuthCodeHash string
}

// Registered reports whether a password is bound to the account.
func (a *Account) Registered() bool {
	return a.PasswordHash != nil
}

// Store is the persistence boundary for accounts. Login names compare
// case-insensitively in every implementation.
type Store interface {
	// GetByLoginName returns the account under loginName, or ErrNotFound.
	GetByLoginName(ctx context.Context, loginName string) (*Account, error)

	// AddAccount issues authCode for loginName: it creates the account when
	// absent, otherwise replaces any outstanding code. Only a hash of the
	// code is stored.
	AddAccount(ctx context.Context, loginName, authCode string) error

	// CompleteRegistration binds passwordHash to the account and consumes
	// the outstanding auth code.
	CompleteRegistration(ctx context.Context, loginName string, passwordHash []byte) error

	// Save flushes buffered state to durable storage. Implementations that
	// write through on every mutation treat it as a no-op.
	Save(ctx context.Context) error
}
