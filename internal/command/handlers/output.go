// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

// Package handlers implements the core park commands.
package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parkhaven/parkhaven/internal/command"
	"github.com/parkhaven/parkhaven/internal/observability"
)

// logOutputError logs a write failure at warn level with structured context
// and increments the command output failure metric. Output failures give
// visibility into connection issues without failing the command.
func logOutputError(ctx context.Context, cmd, memberID string, bytesWritten int, err error) {
	slog.WarnContext(ctx, "failed to write command output",
		"command", cmd,
		"member_id", memberID,
		"bytes_written", bytesWritten,
		"error", err,
	)
	observability.RecordCommandOutputFailure(cmd)
}

// writeOutput writes a message to the command output and logs any errors.
func writeOutput(ctx context.Context, exec *command.Execution, cmd, msg string) {
	if n, err := fmt.Fprintln(exec.Output, msg); err != nil {
		logOutputError(ctx, cmd, exec.MemberID, n, err)
	}
}

// writeOutputf writes a formatted message to the command output and logs
// any errors.
func writeOutputf(ctx context.Context, exec *command.Execution, cmd, format string, args ...any) {
	if n, err := fmt.Fprintf(exec.Output, format, args...); err != nil {
		logOutputError(ctx, cmd, exec.MemberID, n, err)
	}
}
