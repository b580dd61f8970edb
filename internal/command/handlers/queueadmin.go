// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package handlers

import (
	"context"
	"fmt"

	"github.com/parkhaven/parkhaven/internal/command"
)

const queueAdminUsage = "queueadmin <open|close|remove> <id>"

// QueueAdminHandler handles operator control of ride queues.
// Requires park.queue.manage (checked by the dispatcher).
func QueueAdminHandler(ctx context.Context, exec *command.Execution) error {
	args := command.SplitArgs(exec.Args)
	if len(args) < 2 {
		return command.ErrInvalidArgs("queueadmin", queueAdminUsage)
	}

	qm := exec.Services.Queues
	sub, id := args[0], args[1]

	q, ok := qm.Get(id)
	if !ok {
		return command.QueueError(fmt.Sprintf("No queue named %q.", id), nil)
	}

	switch sub {
	case "open":
		qm.SetOpen(q, true)
		writeOutputf(ctx, exec, "queueadmin", "Queue %s is now open.\n", q.Name)
		return nil
	case "close":
		qm.SetOpen(q, false)
		writeOutputf(ctx, exec, "queueadmin", "Queue %s is now closed.\n", q.Name)
		return nil
	case "remove":
		qm.Remove(id)
		writeOutputf(ctx, exec, "queueadmin", "Queue %s removed.\n", q.Name)
		return nil
	default:
		return command.ErrInvalidArgs("queueadmin", queueAdminUsage)
	}
}
