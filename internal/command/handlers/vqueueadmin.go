// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/parkhaven/parkhaven/internal/command"
	"github.com/parkhaven/parkhaven/internal/platform"
)

const vqueueAdminUsage = "vqueueadmin <create|name|area|holdingpos|admitpos|finish|cancel|open|close|admit|remove> [...]"

// VQueueAdminHandler handles operator control of virtual queues, including
// the step-by-step creation wizard. Requires park.vqueue.manage (checked by
// the dispatcher).
func VQueueAdminHandler(ctx context.Context, exec *command.Execution) error {
	args := command.SplitArgs(exec.Args)
	if len(args) == 0 {
		return command.ErrInvalidArgs("vqueueadmin", vqueueAdminUsage)
	}

	vm := exec.Services.Virtual
	sub, rest := args[0], args[1:]

	switch sub {
	case "create":
		if len(rest) != 1 {
			return command.ErrInvalidArgs("vqueueadmin", "vqueueadmin create <id>")
		}
		b, err := vm.StartBuilder(exec.MemberID)
		if err != nil {
			return adminError("You already have a queue setup in progress. Use 'vqueueadmin cancel' first.", err)
		}
		if err := b.SetID(rest[0]); err != nil {
			vm.CancelBuilder(exec.MemberID)
			return adminError("Queue ids are lowercase letters, digits, and dashes.", err)
		}
		writeOutputf(ctx, exec, "vqueueadmin", "Creating virtual queue %q. Next: %s.\n", rest[0], b.Missing())
		return nil

	case "name":
		b, ok := vm.ActiveBuilder(exec.MemberID)
		if !ok {
			return adminError("No queue setup in progress. Start with 'vqueueadmin create <id>'.", nil)
		}
		name := strings.TrimSpace(strings.Join(rest, " "))
		if err := b.SetName(name); err != nil {
			return adminError("The display name cannot be empty.", err)
		}
		writeOutputf(ctx, exec, "vqueueadmin", "Name set. Next: %s.\n", b.Missing())
		return nil

	case "area":
		b, ok := vm.ActiveBuilder(exec.MemberID)
		if !ok {
			return adminError("No queue setup in progress. Start with 'vqueueadmin create <id>'.", nil)
		}
		if len(rest) != 1 {
			return command.ErrInvalidArgs("vqueueadmin", "vqueueadmin area <size>")
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return command.ErrInvalidArgs("vqueueadmin", "vqueueadmin area <size>")
		}
		if err := b.SetHoldingArea(n); err != nil {
			return adminError("The holding area size must be at least 1.", err)
		}
		writeOutputf(ctx, exec, "vqueueadmin", "Holding area set to %d. Next: %s.\n", n, b.Missing())
		return nil

	case "holdingpos", "admitpos":
		b, ok := vm.ActiveBuilder(exec.MemberID)
		if !ok {
			return adminError("No queue setup in progress. Start with 'vqueueadmin create <id>'.", nil)
		}
		pos, err := parsePosition(rest)
		if err != nil {
			return command.ErrInvalidArgs("vqueueadmin", "vqueueadmin "+sub+" <world> <x> <y> <z>")
		}
		if sub == "holdingpos" {
			err = b.SetHoldingPosition(pos)
		} else {
			err = b.SetAdmitPosition(pos)
		}
		if err != nil {
			return adminError("That is not a usable location.", err)
		}
		next := b.Missing()
		if next == "" {
			writeOutput(ctx, exec, "vqueueadmin", "Position set. Run 'vqueueadmin finish' to start the queue.")
		} else {
			writeOutputf(ctx, exec, "vqueueadmin", "Position set. Next: %s.\n", next)
		}
		return nil

	case "finish":
		q, err := vm.FinalizeBuilder(ctx, exec.MemberID)
		if err != nil {
			return finishError(err)
		}
		writeOutputf(ctx, exec, "vqueueadmin", "Virtual queue %s (%s) is live on this server.\n", q.Name, q.ID)
		return nil

	case "cancel":
		if !vm.CancelBuilder(exec.MemberID) {
			return adminError("No queue setup in progress.", nil)
		}
		writeOutput(ctx, exec, "vqueueadmin", "Queue setup cancelled.")
		return nil

	case "open", "close":
		if len(rest) != 1 {
			return command.ErrInvalidArgs("vqueueadmin", "vqueueadmin "+sub+" <id>")
		}
		if err := vm.SetOpen(ctx, rest[0], sub == "open"); err != nil {
			return hostError(rest[0], err)
		}
		writeOutputf(ctx, exec, "vqueueadmin", "Virtual queue %s is now %s.\n", rest[0], map[bool]string{true: "open", false: "closed"}[sub == "open"])
		return nil

	case "admit":
		if len(rest) != 1 {
			return command.ErrInvalidArgs("vqueueadmin", "vqueueadmin admit <id>")
		}
		if err := vm.Admit(ctx, rest[0]); err != nil {
			return admitError(rest[0], err)
		}
		return nil

	case "remove":
		if len(rest) != 1 {
			return command.ErrInvalidArgs("vqueueadmin", "vqueueadmin remove <id>")
		}
		if err := vm.Remove(ctx, rest[0]); err != nil {
			return hostError(rest[0], err)
		}
		writeOutputf(ctx, exec, "vqueueadmin", "Virtual queue %s removed.\n", rest[0])
		return nil

	default:
		return command.ErrInvalidArgs("vqueueadmin", vqueueAdminUsage)
	}
}

// parsePosition parses "<world> <x> <y> <z>" with optional yaw and pitch.
func parsePosition(args []string) (platform.Position, error) {
	if len(args) != 4 && len(args) != 6 {
		return platform.Position{}, oops.Errorf("expected world, x, y, z")
	}
	coords := make([]float64, 0, 5)
	for _, raw := range args[1:] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return platform.Position{}, oops.With("value", raw).Wrap(err)
		}
		coords = append(coords, v)
	}
	pos := platform.Position{World: args[0], X: coords[0], Y: coords[1], Z: coords[2]}
	if len(coords) == 5 {
		pos.Yaw = float32(coords[3])
		pos.Pitch = float32(coords[4])
	}
	return pos, nil
}

func adminError(message string, cause error) error {
	return command.QueueError(message, cause)
}

// finishError maps builder completion failures to player-facing messages.
func finishError(err error) error {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return command.QueueError("Could not create the queue. Try again.", err)
	}
	switch oopsErr.Code() {
	case "BUILDER_NOT_FOUND":
		return command.QueueError("No queue setup in progress. Start with 'vqueueadmin create <id>'.", err)
	case "BUILDER_INCOMPLETE":
		if missing, ok := oopsErr.Context()["missing"].(string); ok && missing != "" {
			return command.QueueError(fmt.Sprintf("Setup is not finished: %s is still needed.", missing), err)
		}
		return command.QueueError("Setup is not finished yet.", err)
	case "QUEUE_EXISTS":
		return command.QueueError("A virtual queue with that id already exists on the network.", err)
	default:
		return command.QueueError("Could not create the queue. Try again.", err)
	}
}

// hostError maps host-authority failures to player-facing messages.
func hostError(queueID string, err error) error {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return command.QueueError("Something went wrong. Try again.", err)
	}
	switch oopsErr.Code() {
	case "QUEUE_NOT_FOUND":
		return command.QueueError(fmt.Sprintf("No virtual queue named %q.", queueID), err)
	case "NOT_HOST":
		return command.QueueError("That queue is hosted on another server; manage it there.", err)
	default:
		return command.QueueError("Something went wrong. Try again.", err)
	}
}

// admitError maps admit failures to player-facing messages.
func admitError(queueID string, err error) error {
	if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() == "QUEUE_EMPTY" {
		return command.QueueError(fmt.Sprintf("The virtual queue %s is empty.", queueID), err)
	}
	return hostError(queueID, err)
}
