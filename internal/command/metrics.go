// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for command execution metrics.
const (
	StatusSuccess          = "success"
	StatusError            = "error"
	StatusNotFound         = "not_found"
	StatusPermissionDenied = "permission_denied"
	StatusRateLimited      = "rate_limited"
)

// CommandExecutions is the counter for command executions.
// Use RegisterMetrics to register this with a Prometheus registry.
var CommandExecutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "parkhaven_command_executions_total",
		Help: "Total number of command executions",
	},
	[]string{"command", "status"},
)

// CommandDuration is the histogram for command execution duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "parkhaven_command_duration_seconds",
		Help:    "Command execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"command"},
)

// RegisterMetrics registers command package metrics with the given registry.
// This must be called at startup to make metrics available on /metrics.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CommandExecutions)
	reg.MustRegister(CommandDuration)
}

// metricsRecorder tracks command execution metrics for a single dispatch.
type metricsRecorder struct {
	startTime time.Time
	command   string
	status    string
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{startTime: time.Now()}
}

func (m *metricsRecorder) setCommand(name string) { m.command = name }
func (m *metricsRecorder) setStatus(status string) {
	m.status = status
}

// record writes the collected metrics if a command name is available.
func (m *metricsRecorder) record() {
	if m.command == "" {
		return
	}
	status := m.status
	if status == "" {
		status = StatusSuccess
	}
	CommandExecutions.WithLabelValues(m.command, status).Inc()
	CommandDuration.WithLabelValues(m.command).Observe(time.Since(m.startTime).Seconds())
}
