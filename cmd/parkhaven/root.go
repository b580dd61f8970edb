// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the ParkHaven CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parkhaven",
		Short: "ParkHaven - distributed theme-park queue coordinator",
		Long: `ParkHaven coordinates ride queues across a network of game servers:
physical ride lines with FastPass charging, and network-wide virtual
queues replicated over a Redis relay.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
