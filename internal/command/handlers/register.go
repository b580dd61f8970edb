// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package handlers

import (
	"github.com/parkhaven/parkhaven/internal/command"
)

// Capabilities required by operator commands.
const (
	CapQueueManage   = "park.queue.manage"
	CapVQueueManage  = "park.vqueue.manage"
	CapFastPassGrant = "park.fastpass.grant"
)

// RegisterAll registers all core command handlers with the registry.
func RegisterAll(reg *command.Registry) {
	reg.Register(command.Entry{
		Name:    "queue",
		Handler: QueueHandler,
		Help:    "Join, leave, or check a ride queue",
		Usage:   queueUsage,
		Source:  "core",
	})
	reg.Register(command.Entry{
		Name:       "queueadmin",
		Handler:    QueueAdminHandler,
		Capability: CapQueueManage,
		Help:       "Open, close, or remove a ride queue",
		Usage:      queueAdminUsage,
		Source:     "core",
	})
	reg.Register(command.Entry{
		Name:    "vqueue",
		Handler: VQueueHandler,
		Help:    "Join, leave, or check a virtual queue",
		Usage:   vqueueUsage,
		Source:  "core",
	})
	reg.Register(command.Entry{
		Name:       "vqueueadmin",
		Handler:    VQueueAdminHandler,
		Capability: CapVQueueManage,
		Help:       "Create and manage virtual queues",
		Usage:      vqueueAdminUsage,
		Source:     "core",
	})
	reg.Register(command.Entry{
		Name:    "fastpass",
		Handler: FastPassHandler,
		Help:    "Check your FastPass balance",
		Usage:   "fastpass",
		Source:  "core",
	})
	reg.Register(command.Entry{
		Name:       "fastpassgrant",
		Handler:    FastPassGrantHandler,
		Capability: CapFastPassGrant,
		Help:       "Grant FastPass uses to a member",
		Usage:      "fastpassgrant <member> <count>",
		Source:     "core",
	})
}
