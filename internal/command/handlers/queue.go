// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package handlers

import (
	"context"
	"fmt"

	"github.com/samber/oops"

	"github.com/parkhaven/parkhaven/internal/command"
)

const queueUsage = "queue <join|leave|position|list> [id]"

// QueueHandler handles the player-facing ride queue command.
func QueueHandler(ctx context.Context, exec *command.Execution) error {
	args := command.SplitArgs(exec.Args)
	if len(args) == 0 {
		return command.ErrInvalidArgs("queue", queueUsage)
	}

	qm := exec.Services.Queues
	sub, rest := args[0], args[1:]

	switch sub {
	case "list":
		pattern := "*"
		if len(rest) > 0 {
			pattern = rest[0]
		}
		queues, err := qm.List(pattern)
		if err != nil {
			return command.ErrInvalidArgs("queue", "queue list [glob]")
		}
		if len(queues) == 0 {
			writeOutput(ctx, exec, "queue", "No queues match.")
			return nil
		}
		for _, q := range queues {
			state := "closed"
			if q.Line().Open() {
				state = "open"
			}
			writeOutputf(ctx, exec, "queue", "%s (%s) - %s, %d in line\n", q.Name, q.ID, state, q.Line().Len())
		}
		return nil

	case "join", "leave", "position":
		if len(rest) == 0 {
			return command.ErrInvalidArgs("queue", queueUsage)
		}
		q, ok := qm.Get(rest[0])
		if !ok {
			return command.QueueError(fmt.Sprintf("No queue named %q.", rest[0]), nil)
		}

		switch sub {
		case "join":
			if err := qm.Join(ctx, q, exec.MemberID); err != nil {
				return queueJoinError(q.Name, err)
			}
			return nil
		case "leave":
			if !qm.Leave(q, exec.MemberID) {
				return command.QueueError(fmt.Sprintf("You are not in the queue for %s.", q.Name), nil)
			}
			return nil
		default: // position
			pos := qm.Position(q, exec.MemberID)
			if pos == 0 {
				writeOutputf(ctx, exec, "queue", "You are not in the queue for %s.\n", q.Name)
				return nil
			}
			writeOutputf(ctx, exec, "queue", "You are number %d in line for %s.\n", pos, q.Name)
			return nil
		}

	default:
		return command.ErrInvalidArgs("queue", queueUsage)
	}
}

// queueJoinError maps join failures to player-facing messages.
func queueJoinError(queueName string, err error) error {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return command.QueueError("Something went wrong joining the queue.", err)
	}
	switch oopsErr.Code() {
	case "QUEUE_CLOSED":
		return command.QueueError(fmt.Sprintf("The queue for %s is closed.", queueName), err)
	case "ALREADY_QUEUED":
		return command.QueueError(fmt.Sprintf("You are already in the queue for %s.", queueName), err)
	case "FASTPASS_EXHAUSTED":
		return command.QueueError(fmt.Sprintf("You do not have a FastPass for %s.", queueName), err)
	default:
		return command.QueueError("Something went wrong joining the queue.", err)
	}
}
