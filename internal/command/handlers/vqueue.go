// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package handlers

import (
	"context"
	"fmt"

	"github.com/samber/oops"

	"github.com/parkhaven/parkhaven/internal/command"
)

const vqueueUsage = "vqueue <join|leave|position|list> [id]"

// VQueueHandler handles the player-facing virtual queue command. Joins and
// leaves route through the manager, which forwards to the host server when
// the queue is hosted elsewhere.
func VQueueHandler(ctx context.Context, exec *command.Execution) error {
	args := command.SplitArgs(exec.Args)
	if len(args) == 0 {
		return command.ErrInvalidArgs("vqueue", vqueueUsage)
	}

	vm := exec.Services.Virtual
	sub, rest := args[0], args[1:]

	switch sub {
	case "list":
		queues := vm.All()
		if len(queues) == 0 {
			writeOutput(ctx, exec, "vqueue", "No virtual queues are running.")
			return nil
		}
		for _, q := range queues {
			state := "closed"
			if q.Line().Open() {
				state = "open"
			}
			host := ""
			if q.HostedBy(vm.Server()) {
				host = " (hosted here)"
			}
			writeOutputf(ctx, exec, "vqueue", "%s (%s) - %s, %d in line%s\n",
				q.Name, q.ID, state, q.Line().Len(), host)
		}
		return nil

	case "join", "leave", "position":
		if len(rest) == 0 {
			return command.ErrInvalidArgs("vqueue", vqueueUsage)
		}
		id := rest[0]

		switch sub {
		case "join":
			if err := vm.Join(ctx, id, exec.MemberID); err != nil {
				return vqueueError(id, err)
			}
			return nil
		case "leave":
			if err := vm.Leave(ctx, id, exec.MemberID); err != nil {
				return vqueueError(id, err)
			}
			return nil
		default: // position
			pos := vm.Position(id, exec.MemberID)
			if pos == 0 {
				writeOutputf(ctx, exec, "vqueue", "You are not in the virtual queue %s.\n", id)
				return nil
			}
			writeOutputf(ctx, exec, "vqueue", "You are number %d in the virtual queue %s.\n", pos, id)
			return nil
		}

	default:
		return command.ErrInvalidArgs("vqueue", vqueueUsage)
	}
}

// vqueueError maps virtual queue failures to player-facing messages.
func vqueueError(queueID string, err error) error {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return command.QueueError("Something went wrong. Try again.", err)
	}
	switch oopsErr.Code() {
	case "QUEUE_NOT_FOUND":
		return command.QueueError(fmt.Sprintf("No virtual queue named %q.", queueID), err)
	case "QUEUE_CLOSED":
		return command.QueueError("That virtual queue is closed.", err)
	case "ALREADY_QUEUED":
		return command.QueueError("You are already in that virtual queue.", err)
	case "NOT_QUEUED":
		return command.QueueError("You are not in that virtual queue.", err)
	default:
		return command.QueueError("Something went wrong. Try again.", err)
	}
}
