// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/driftgate/driftgate/internal/account"
	acctpg "github.com/driftgate/driftgate/internal/account/postgres"
	"github.com/driftgate/driftgate/internal/config"
	"github.com/driftgate/driftgate/internal/control"
	"github.com/driftgate/driftgate/internal/logging"
	"github.com/driftgate/driftgate/internal/login"
	"github.com/driftgate/driftgate/internal/netinfo"
	"github.com/driftgate/driftgate/internal/observability"
	"github.com/driftgate/driftgate/internal/social"
	"github.com/driftgate/driftgate/internal/transport"
	"github.com/driftgate/driftgate/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the login server",
		Long: `Start the login server: the player, launcher and auth code
listeners, the status endpoint and the dispatch loop.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	defaults := config.Default()
	flags := cmd.Flags()
	flags.String("log.format", defaults.Log.Format, "log format (json or text)")
	flags.String("log.level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("listen.player", defaults.Listen.Player, "player listen address")
	flags.String("listen.launcher", defaults.Listen.Launcher, "game server launcher listen address")
	flags.String("listen.authcode", defaults.Listen.AuthCode, "auth code listen address")
	flags.String("listen.status", defaults.Listen.Status, "public status HTTP address")
	flags.String("observability.addr", defaults.Observability.Addr, "metrics/health HTTP address (empty = disabled)")
	flags.String("accounts.backend", defaults.Accounts.Backend, "account store backend (file, memory or postgres)")
	flags.String("accounts.path", defaults.Accounts.Path, "account file path (file backend)")
	flags.String("accounts.database_url", "", "postgres connection URL (postgres backend)")
	flags.String("netinfo.probe_url", "", "external address probe URL (empty = default)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.SetDefault(logging.Options{
		Service: "driftgate",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	accounts, cleanup, err := openAccountStore(ctx, cfg.Accounts)
	if err != nil {
		return err
	}
	defer cleanup()

	addressPair := netinfo.Detect(ctx, cfg.Netinfo.ProbeURL)
	if addressPair.HasExternal() {
		slog.Info("address pair detected",
			"external", addressPair.External.String(),
			"internal", addressPair.Internal.String(),
		)
	}

	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.Observability.Addr != "" {
		obsServer = observability.NewServer(cfg.Observability.Addr, func() bool { return true })
		metrics = obsServer.Metrics()
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	coordinator := login.NewServer(login.Config{
		Accounts:    accounts,
		Social:      social.NewNetwork(),
		AddressPair: addressPair,
		Metrics:     metrics,
		Stats:       logStatsSink{},
		MenuData:    login.MenuData{Classes: cfg.Game.Classes},
	})

	transportServer := transport.NewServer(transport.Config{
		PlayerAddr:   cfg.Listen.Player,
		LauncherAddr: cfg.Listen.Launcher,
		AuthCodeAddr: cfg.Listen.AuthCode,
	}, coordinator.Queue())

	statusServer := transport.NewStatusServer(cfg.Listen.Status, coordinator.Queue())
	if err := statusServer.Start(); err != nil {
		return err
	}

	controlServer := control.NewServer(control.ShutdownFunc(cancel), func() map[string]string {
		return map[string]string{
			"player":   transportServer.Addr("player"),
			"launcher": transportServer.Addr("launcher"),
			"authcode": transportServer.Addr("authcode"),
			"status":   statusServer.Addr(),
		}
	})
	if err := controlServer.Start(); err != nil {
		return oops.Code("CONTROL_START_FAILED").Wrap(err)
	}

	errChan := make(chan error, 2)
	go func() {
		errChan <- coordinator.Run(ctx)
	}()
	go func() {
		errChan <- transportServer.Run(ctx)
	}()

	slog.Info("driftgate ready",
		"player_addr", cfg.Listen.Player,
		"launcher_addr", cfg.Listen.Launcher,
		"authcode_addr", cfg.Listen.AuthCode,
		"status_addr", cfg.Listen.Status,
	)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	case runErr = <-errChan:
		if runErr != nil {
			errutil.LogError(slog.Default(), "server failed", runErr)
		}
		cancel()
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := statusServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping status server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
	if err := controlServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping control server", "error", err)
	}

	// Flush any buffered account mutations before exit.
	if err := accounts.Save(shutdownCtx); err != nil {
		slog.Warn("error saving accounts on shutdown", "error", err)
	}

	slog.Info("shutdown complete")
	return runErr
}

// openAccountStore builds the configured account store and a cleanup for
// its resources.
func openAccountStore(ctx context.Context, cfg config.Accounts) (account.Store, func(), error) {
	switch cfg.Backend {
	case "memory":
		return account.NewMemoryStore(), func() {}, nil

	case "file":
		store, err := account.OpenFileStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("account file store opened", "path", cfg.Path, "accounts", store.Len())
		return store, func() {}, nil

	case "postgres":
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
		}
		slog.Info("connected to database")
		return acctpg.NewStore(pool), pool.Close, nil

	default:
		return nil, nil, oops.Code("CONFIG_INVALID").Errorf("unknown accounts backend %q", cfg.Backend)
	}
}

// migrateUp applies pending schema migrations before serving.
func migrateUp(databaseURL string) error {
	migrator, err := acctpg.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			slog.Warn("error closing migrator", "error", err)
		}
	}()
	return migrator.Up()
}

// logStatsSink publishes the joinable server snapshot to the log. A real
// deployment replaces this with the web API feed.
type logStatsSink struct{}

func (logStatsSink) PublishServerStats(stats []login.ServerStat) {
	slog.Debug("server stats updated", "joinable_servers", len(stats))
}

// monitorServerErrors cancels the process context when a background server
// reports an error. A closed channel means a graceful stop.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
