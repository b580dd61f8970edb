// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/parkhaven/parkhaven/internal/command"
	"github.com/parkhaven/parkhaven/internal/command/handlers"
	"github.com/parkhaven/parkhaven/internal/config"
	"github.com/parkhaven/parkhaven/internal/console"
	"github.com/parkhaven/parkhaven/internal/logging"
	"github.com/parkhaven/parkhaven/internal/observability"
	"github.com/parkhaven/parkhaven/internal/platform"
	"github.com/parkhaven/parkhaven/internal/queue"
	"github.com/parkhaven/parkhaven/internal/relay"
	"github.com/parkhaven/parkhaven/internal/store"
	"github.com/parkhaven/parkhaven/internal/vqueue"
)

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the queue coordinator",
		Long: `Run the queue coordinator process: load park files, restore virtual
queue state, join the relay network, and serve the admin console and
observability endpoints until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps starts the coordinator with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreFactory == nil {
		deps.StoreFactory = defaultStoreFactory
	}
	if deps.RelayFactory == nil {
		deps.RelayFactory = defaultRelayFactory
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, rc observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, rc)
		}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("parkhaven", version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))

	slog.Info("starting queue coordinator",
		"server", cfg.Server,
		"park", cfg.Park,
		"redis_addr", cfg.Redis.Addr,
	)

	dbURL := cfg.DatabaseURL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (config database_url or DATABASE_URL)")
	}

	stores, err := deps.StoreFactory(ctx, dbURL)
	if err != nil {
		return oops.With("operation", "open persistence").Wrap(err)
	}
	defer stores.Close()

	rel, relClose, err := deps.RelayFactory(ctx, cfg)
	if err != nil {
		return oops.With("operation", "connect relay").Wrap(err)
	}
	defer relClose()
	defer func() {
		if err := rel.Close(); err != nil {
			slog.Warn("error closing relay", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A coordinator process has no engine attached; players act from game
	// servers embedding the library, so the local directory is empty.
	dir := platform.EmptyDirectory{}
	signs := platform.NopSignWriter{}

	qm := queue.NewManager(cfg.Park, dir, signs, stores.FastPass)
	if err := loadParkFiles(qm, cfg.ParksDir); err != nil {
		return err
	}

	vm := vqueue.NewManager(cfg.Server, rel, stores.VirtualQueues, dir,
		vqueue.WithHoldingWindow(cfg.Queue.HoldingWindow),
		vqueue.WithResyncCycles(cfg.Queue.ResyncCycles),
	)

	if err := vm.LoadPersisted(ctx); err != nil {
		return oops.With("operation", "restore queue state").Wrap(err)
	}
	if err := vm.Start(ctx, cfg.Queue.TickInterval); err != nil {
		return oops.With("operation", "start virtual queue manager").Wrap(err)
	}

	// Physical queues reconcile on the same cadence as virtual ones.
	go func() {
		ticker := time.NewTicker(cfg.Queue.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				qm.Tick(now)
			}
		}
	}()

	reg := command.NewRegistry()
	handlers.RegisterAll(reg)

	rateLimiter := command.NewRateLimiter(command.RateLimiterConfig{})
	defer rateLimiter.Close()

	dispatcher, err := command.NewDispatcher(reg, command.AllowAll{},
		command.WithRateLimiter(rateLimiter))
	if err != nil {
		return oops.With("operation", "create dispatcher").Wrap(err)
	}

	services := &command.Services{
		Queues:   qm,
		Virtual:  vm,
		FastPass: stores.FastPass,
		Online:   dir,
	}

	if cfg.ConsoleAddr != "" {
		cs := console.NewServer(cfg.ConsoleAddr, dispatcher, reg, services)
		go func() {
			if err := cs.Run(ctx); err != nil {
				slog.Error("admin console failed", "error", err)
				cancel()
			}
		}()
	}

	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		// Ready once we reach this point: persistence is open, state is
		// restored, and the relay subscription is live.
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool { return true })
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Queue coordinator started")
	slog.Info("queue coordinator ready", "server", cfg.Server, "queues", len(vm.All()))

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Drain hosted queues before the relay goes away so members are told
	// and removal reaches the mirrors.
	vm.Shutdown(shutdownCtx)

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// loadParkFiles registers queues from every park file in dir. A missing
// directory is fine; a malformed file is not.
func loadParkFiles(qm *queue.Manager, dir string) error {
	if dir == "" {
		return nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return oops.Code("PARK_FILE_READ_FAILED").With("dir", dir).Wrap(err)
	}
	for _, path := range paths {
		if err := qm.LoadFile(path); err != nil {
			return err
		}
		slog.Info("park file loaded", "path", path)
	}
	if len(paths) == 0 {
		slog.Info("no park files found", "dir", dir)
	}
	return nil
}

// connectBackoff is the startup retry schedule for external dependencies.
func connectBackoff() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewFibonacci(500*time.Millisecond))
}

// defaultStoreFactory opens a PostgreSQL pool, retrying while the database
// comes up, and wires the stores that share it.
func defaultStoreFactory(ctx context.Context, dsn string) (*Stores, error) {
	var pool *pgxpool.Pool
	err := retry.Do(ctx, connectBackoff(), func(ctx context.Context) error {
		p, err := store.Connect(ctx, dsn)
		if err != nil {
			slog.Warn("database connect failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	return &Stores{
		VirtualQueues: store.NewPostgresVirtualQueueStore(pool),
		FastPass:      store.NewPostgresFastPassLedger(pool),
		Close:         pool.Close,
	}, nil
}

// defaultRelayFactory connects a Redis client, retrying while the broker
// comes up, and wraps it in the relay.
func defaultRelayFactory(ctx context.Context, cfg *config.Config) (relay.Relay, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	err := retry.Do(ctx, connectBackoff(), func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("redis ping failed, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, oops.Code("RELAY_CONNECT_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			slog.Warn("error closing redis client", "error", err)
		}
	}
	return relay.NewRedisRelay(client, cfg.Redis.Channel, cfg.Server), cleanup, nil
}

// monitorServerErrors cancels the context when a background server fails,
// triggering graceful shutdown of the whole process. It exits when an error
// arrives, the channel closes, or the context is cancelled.
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
