// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

// Package command provides the command registry, parser, and dispatch system.
package command

import (
	"context"
	"io"

	"github.com/parkhaven/parkhaven/internal/platform"
	"github.com/parkhaven/parkhaven/internal/queue"
	"github.com/parkhaven/parkhaven/internal/vqueue"
)

// Handler is the function signature for command handlers.
type Handler func(ctx context.Context, exec *Execution) error

// Entry represents a registered command.
type Entry struct {
	Name       string  // canonical name (e.g., "queue")
	Handler    Handler // command implementation
	Capability string  // required capability, empty for player commands
	Help       string  // short description (one line)
	Usage      string  // usage pattern (e.g., "queue join <id>")
	Source     string  // "core" or the name of the park file that added it
}

// Execution provides context for command execution.
type Execution struct {
	MemberID   string
	MemberName string
	Args       string
	InvokedAs  string
	Output     io.Writer
	Services   *Services
}

// FastPassLedger is the balance surface handlers need. The store package
// provides the PostgreSQL implementation.
type FastPassLedger interface {
	Grant(ctx context.Context, memberID string, count int) error
	Balance(ctx context.Context, memberID string) (int, error)
}

// Services provides access to core services for command handlers.
// Handlers MUST NOT store references to services beyond execution.
type Services struct {
	Queues   *queue.Manager  // physical ride queues
	Virtual  *vqueue.Manager // network-wide virtual queues
	FastPass FastPassLedger  // balance queries and grants, may be nil
	Online   platform.Directory
}
