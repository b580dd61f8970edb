// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// CoordinatorStatus holds the health probe results for a coordinator.
type CoordinatorStatus struct {
	Addr  string `json:"addr"`
	Live  bool   `json:"live"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	metricsAddr string
	jsonOutput  bool
}

// newStatusCmd creates the status subcommand.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running coordinator",
		Long:  `Probe the liveness and readiness endpoints of a running queue coordinator.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", "127.0.0.1:9100", "observability address to probe")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	status := probeCoordinator(cfg.metricsAddr)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(formatStatus(status))
	return nil
}

// probeCoordinator queries the health endpoints at addr.
func probeCoordinator(addr string) CoordinatorStatus {
	status := CoordinatorStatus{Addr: addr}
	client := &http.Client{Timeout: 2 * time.Second}
	base := "http://" + addr

	live, err := probe(client, base+"/healthz/liveness")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Live = live

	ready, err := probe(client, base+"/healthz/readiness")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Ready = ready

	return status
}

// probe returns whether the endpoint answered 200.
func probe(client *http.Client, url string) (bool, error) {
	resp, err := client.Get(url)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close() //nolint:errcheck // drain-and-close on a probe
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK, nil
}

// formatStatus renders a human-readable status line.
func formatStatus(s CoordinatorStatus) string {
	if s.Error != "" {
		return fmt.Sprintf("%s: unreachable (%s)", s.Addr, s.Error)
	}
	parts := []string{}
	if s.Live {
		parts = append(parts, "live")
	} else {
		parts = append(parts, "not live")
	}
	if s.Ready {
		parts = append(parts, "ready")
	} else {
		parts = append(parts, "not ready")
	}
	return fmt.Sprintf("%s: %s", s.Addr, strings.Join(parts, ", "))
}
