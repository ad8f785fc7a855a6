// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/driftgate/driftgate/internal/account"
	"github.com/driftgate/driftgate/internal/account/postgres"
)

// startDatabase brings up a migrated PostgreSQL container and returns a
// connected pool.
func startDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("driftgate_test"),
		tcpostgres.WithUsername("driftgate"),
		tcpostgres.WithPassword("driftgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := postgres.NewMigrator(connStr)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestStore_Integration(t *testing.T) {
	ctx := context.Background()
	store := postgres.NewStore(startDatabase(t))

	t.Run("issue code and look up", func(t *testing.T) {
		require.NoError(t, store.AddAccount(ctx, "kate", "Abcd1234"))

		acct, err := store.GetByLoginName(ctx, "KATE")
		require.NoError(t, err)
		assert.Equal(t, "kate", acct.LoginName)
		assert.GreaterOrEqual(t, acct.UniqueID, 1_000_000, "unique IDs start at the account floor")
		assert.False(t, acct.Registered())

		ok, err := account.VerifyAuthCode("Abcd1234", acct.AuthCodeHash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("re-issue replaces the code", func(t *testing.T) {
		before, err := store.GetByLoginName(ctx, "kate")
		require.NoError(t, err)

		require.NoError(t, store.AddAccount(ctx, "kate", "Efgh5678"))

		after, err := store.GetByLoginName(ctx, "kate")
		require.NoError(t, err)
		assert.Equal(t, before.UniqueID, after.UniqueID)
		assert.NotEqual(t, before.AuthCodeHash, after.AuthCodeHash)
	})

	t.Run("complete registration", func(t *testing.T) {
		require.NoError(t, store.CompleteRegistration(ctx, "kate", []byte("pw-hash")))

		acct, err := store.GetByLoginName(ctx, "kate")
		require.NoError(t, err)
		assert.True(t, acct.Registered())
		assert.Equal(t, []byte("pw-hash"), acct.PasswordHash)
		assert.Empty(t, acct.AuthCodeHash)
	})

	t.Run("unknown names", func(t *testing.T) {
		_, err := store.GetByLoginName(ctx, "nobody")
		assert.ErrorIs(t, err, account.ErrNotFound)

		err = store.CompleteRegistration(ctx, "nobody", []byte("pw"))
		assert.ErrorIs(t, err, account.ErrNotFound)
	})
}

func TestMigrator_FullCycle(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("driftgate_test"),
		tcpostgres.WithUsername("driftgate"),
		tcpostgres.WithPassword("driftgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := postgres.NewMigrator(connStr)
	require.NoError(t, err)
	defer migrator.Close()

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Up())
	version, dirty, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Up is idempotent once current.
	require.NoError(t, migrator.Up())

	require.NoError(t, migrator.Down())
	version, _, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}
