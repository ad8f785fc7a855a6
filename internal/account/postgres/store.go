// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

// Package postgres implements the account store on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/driftgate/driftgate/internal/account"
)

// Querier is the slice of the pgx pool surface the store uses. Both
// *pgxpool.Pool and test mocks satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

// Store implements account.Store on PostgreSQL. Every mutation writes
// through, so Save is a no-op.
type Store struct {
	pool Querier
}

// NewStore creates a Store on top of pool.
func NewStore(pool Querier) *Store {
	return &Store{pool: pool}
}

// GetByLoginName retrieves an account by login name (case-insensitive).
func (s *Store) GetByLoginName(ctx context.Context, loginName string) (*account.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT login_name, password_hash, unique_id, auth_code_hash
		FROM accounts
		WHERE LOWER(login_name) = LOWER($1)
	`, loginName)

	var (
		acct         account.Account
		passwordHash []byte
		authCodeHash *string
	)
	err := row.Scan(&acct.LoginName, &passwordHash, &acct.UniqueID, &authCodeHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("login_name", loginName).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("login_name", loginName).
			Wrap(err)
	}

	acct.PasswordHash = passwordHash
	if authCodeHash != nil {
		acct.AuthCodeHash = *authCodeHash
	}
	return &acct, nil
}

// AddAccount issues an auth code, inserting the account on first use. A
// concurrent insert of the same login name surfaces as a unique violation
// and falls through to the update path.
func (s *Store) AddAccount(ctx context.Context, loginName, authCode string) error {
	codeHash, err := account.HashAuthCode(authCode)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO accounts (login_name, auth_code_hash)
		VALUES ($1, $2)
	`, loginName, codeHash)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return oops.Code("ACCOUNT_ADD_FAILED").
			With("login_name", loginName).
			Wrap(err)
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE accounts SET auth_code_hash = $2
		WHERE LOWER(login_name) = LOWER($1)
	`, loginName, codeHash)
	if err != nil {
		return oops.Code("ACCOUNT_ADD_FAILED").
			With("login_name", loginName).
			Wrap(err)
	}
	return nil
}

// CompleteRegistration binds the password hash and consumes the auth code.
func (s *Store) CompleteRegistration(ctx context.Context, loginName string, passwordHash []byte) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, auth_code_hash = NULL
		WHERE LOWER(login_name) = LOWER($1)
	`, loginName, passwordHash)
	if err != nil {
		return oops.Code("ACCOUNT_REGISTER_FAILED").
			With("login_name", loginName).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("login_name", loginName).Wrap(account.ErrNotFound)
	}
	return nil
}

// Save is a no-op: mutations write through to the database.
func (s *Store) Save(_ context.Context) error {
	return nil
}

// Compile-time interface check.
var _ account.Store = (*Store)(nil)
