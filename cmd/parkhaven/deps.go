// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package main

import (
	"context"

	"github.com/parkhaven/parkhaven/internal/command"
	"github.com/parkhaven/parkhaven/internal/config"
	"github.com/parkhaven/parkhaven/internal/observability"
	"github.com/parkhaven/parkhaven/internal/queue"
	"github.com/parkhaven/parkhaven/internal/relay"
	"github.com/parkhaven/parkhaven/internal/vqueue"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoreFactory opens the persistence layer from a database URL.
	// Default: PostgreSQL via store.Connect with startup retries.
	StoreFactory func(ctx context.Context, dsn string) (*Stores, error)

	// RelayFactory creates the pub/sub relay. The returned cleanup func
	// releases the underlying connection after the relay is closed.
	// Default: relay.NewRedisRelay over a go-redis client.
	RelayFactory func(ctx context.Context, cfg *config.Config) (relay.Relay, func(), error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// FastPassLedger is the full ledger surface serve wires: charging on
// physical queue joins plus the balance and grant operations commands use.
type FastPassLedger interface {
	queue.FastPassCharger
	command.FastPassLedger
}

// Stores bundles the persistence handles sharing one connection pool.
type Stores struct {
	VirtualQueues vqueue.Store
	FastPass      FastPassLedger
	Close         func()
}

// ObservabilityServer wraps the observability.Server methods serve uses.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}
