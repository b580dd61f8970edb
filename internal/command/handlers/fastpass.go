// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package handlers

import (
	"context"
	"strconv"

	"github.com/parkhaven/parkhaven/internal/command"
)

// FastPassHandler reports the caller's FastPass balance.
func FastPassHandler(ctx context.Context, exec *command.Execution) error {
	if exec.Services.FastPass == nil {
		writeOutput(ctx, exec, "fastpass", "FastPass is not enabled on this server.")
		return nil
	}
	balance, err := exec.Services.FastPass.Balance(ctx, exec.MemberID)
	if err != nil {
		return command.QueueError("Could not look up your FastPass balance.", err)
	}
	writeOutputf(ctx, exec, "fastpass", "You have %d FastPass uses left.\n", balance)
	return nil
}

// FastPassGrantHandler credits FastPass uses to a member.
// Requires park.fastpass.grant (checked by the dispatcher).
func FastPassGrantHandler(ctx context.Context, exec *command.Execution) error {
	if exec.Services.FastPass == nil {
		writeOutput(ctx, exec, "fastpassgrant", "FastPass is not enabled on this server.")
		return nil
	}
	args := command.SplitArgs(exec.Args)
	if len(args) != 2 {
		return command.ErrInvalidArgs("fastpassgrant", "fastpassgrant <member> <count>")
	}
	count, err := strconv.Atoi(args[1])
	if err != nil || count < 1 {
		return command.ErrInvalidArgs("fastpassgrant", "fastpassgrant <member> <count>")
	}
	if err := exec.Services.FastPass.Grant(ctx, args[0], count); err != nil {
		return command.QueueError("Could not grant FastPass uses.", err)
	}
	writeOutputf(ctx, exec, "fastpassgrant", "Granted %d FastPass uses to %s.\n", count, args[0])

	if p, ok := exec.Services.Online.Lookup(args[0]); ok {
		p.Message("You received " + strconv.Itoa(count) + " FastPass uses!")
	}
	return nil
}
